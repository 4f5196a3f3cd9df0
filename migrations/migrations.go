// Package migrations holds the schema of the remote document store.
package migrations

import _ "embed"

//go:embed 001_create_task_documents.up.sql
var CreateTaskDocuments string
