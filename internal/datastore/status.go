package datastore

import (
	"fmt"
	"slices"

	"github.com/huangsam/exprora/schema"
)

// PrintStoreStatus prints store status information.
func PrintStoreStatus(status schema.StoreStatus) {
	fmt.Printf("Store Backend: %s\n", status.Backend)
	if status.Database != "" {
		fmt.Printf("Database: %s\n", status.Database)
	}
	fmt.Printf("Connected: %t\n", status.Connected)
	if !status.Connected {
		return
	}
	if status.SchemaVersion > 0 {
		fmt.Printf("Schema Version: %d\n", status.SchemaVersion)
	}
	fmt.Printf("Total Accounts: %d\n", status.TotalAccounts)
	fmt.Printf("Total Experiments: %d\n", status.TotalExperiments)
	fmt.Printf("Total Assignments: %d\n", status.TotalAssignments)
	fmt.Printf("Total Events: %d\n", status.TotalEvents)
	if status.TotalEvents > 0 {
		fmt.Printf("Last Event: %s\n", status.LastEventTime.Format("2006-01-02 15:04:05"))
		fmt.Printf("Oldest Event: %s\n", status.OldestEventTime.Format("2006-01-02 15:04:05"))
	}
	fmt.Println("Table Sizes:")
	tables := make([]string, 0, len(status.TableSizes))
	for table := range status.TableSizes {
		tables = append(tables, table)
	}
	slices.Sort(tables)
	for _, table := range tables {
		fmt.Printf("  %s: %d rows\n", table, status.TableSizes[table])
	}
}
