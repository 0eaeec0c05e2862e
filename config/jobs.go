package config

import (
	"os"
	"strings"
	"time"
)

// SystemAccountEmail identifies the account stamped on events written by the batch jobs.
//
// Set via env:
// - SYSTEM_ACCOUNT_EMAIL=admin@zerologementvacant.beta.gouv.fr
func SystemAccountEmail() string {
	return strings.TrimSpace(os.Getenv("SYSTEM_ACCOUNT_EMAIL"))
}

// DataFileYear is the tag of the yearly snapshot being reconciled, e.g. "lovac-2024".
func DataFileYear() string {
	return strings.TrimSpace(os.Getenv("HOUSING_DATA_FILE_YEAR"))
}

func ReconcileBatchSize() int {
	return intFromEnv("RECONCILE_BATCH_SIZE", 1000)
}

func DedupePageSize() int {
	return intFromEnv("DEDUPE_PAGE_SIZE", 500)
}

// ConflictsTopic is the Pub/Sub topic receiving conflict events. Empty disables publishing.
func ConflictsTopic() string {
	return strings.TrimSpace(os.Getenv("HOUSING_CONFLICTS_TOPIC"))
}

func JobLockTTL() time.Duration {
	return time.Duration(intFromEnv("JOB_LOCK_TTL_SECONDS", 3600)) * time.Second
}
