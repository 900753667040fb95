package shared

import "fmt"

// ReconcileLockKey builds the redis key guarding a reconciliation run.
func ReconcileLockKey(scope string) string {
	if scope == "" {
		scope = "all"
	}
	return fmt.Sprintf("ledger:reconcile:%s:lock", scope)
}
