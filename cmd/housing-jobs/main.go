package main

import (
	"errors"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/housing_backend/config"
	"bitbucket.org/mmdatafocus/housing_backend/workflow"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "housing-jobs",
		Usage: "batch jobs keeping the housing records in line with the yearly vacancy files",
		Commands: []*cli.Command{
			importSourceCommand(),
			reconcileCommand(),
			dedupeCommand(),
			conflictsExportCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		data := map[string]any{}
		var jobErr *workflow.JobError
		if errors.As(err, &jobErr) {
			data["kind"] = jobErr.Kind.String()
			data["op"] = jobErr.Op
			data["key"] = jobErr.Key
		}
		config.LogError(config.GetLogger(), "main.go", "main", "Running housing-jobs", data, err)
		fmt.Fprintln(os.Stderr, err)
		config.CloseRedis()
		config.ClosePubSub()
		os.Exit(1)
	}
	config.CloseRedis()
	config.ClosePubSub()
}
