package ddlkit

import (
	"context"
)

// GenerateFromFile is a convenience function to generate a migration from a
// schema file into the default folder with breakpoints.
func GenerateFromFile(ctx context.Context, dialect Dialect, schemaFile, name string) (*GenerateResult, error) {
	return Generate(ctx, GenerateOptions{
		FolderOptions: FolderOptions{Dialect: dialect},
		Schema:        schemaFile,
		Name:          name,
		Breakpoints:   true,
	})
}

// PushFile is a convenience function to push a schema file to a database
// without confirmation.
func PushFile(ctx context.Context, dialect Dialect, url, schemaFile string) (*PushResult, error) {
	return Push(ctx, PushOptions{
		Dialect: dialect,
		URL:     url,
		Schema:  schemaFile,
	})
}

// PlanPush is like PushFile but only computes the SQL.
func PlanPush(ctx context.Context, dialect Dialect, url, schemaFile string) (*PushResult, error) {
	return Push(ctx, PushOptions{
		Dialect: dialect,
		URL:     url,
		Schema:  schemaFile,
		DryRun:  true,
	})
}
