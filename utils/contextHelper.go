package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/housing_backend/appctx"
	"github.com/google/uuid"
)

var (
	ContextKeyRunId   = appctx.ContextKeyRunId
	ContextKeyJobName = appctx.ContextKeyJobName
)

func GetRunIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRunId)
}

func GetJobNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyJobName)
}

// NewJobContext tags ctx with the job name and a fresh run id.
func NewJobContext(ctx context.Context, jobName string) context.Context {
	ctx = appctx.Set(ctx, ContextKeyJobName, jobName)
	return appctx.Set(ctx, ContextKeyRunId, uuid.NewString())
}
