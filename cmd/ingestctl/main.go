// @title        Ingest Console API
// @version      1.0
// @description  Session, role guard and live ingestion status for the document ingestion backend.
// @BasePath     /
package main

import "github.com/docflow/ingest-console/cmd/ingestctl/cmd"

func main() {
	cmd.Execute()
}
