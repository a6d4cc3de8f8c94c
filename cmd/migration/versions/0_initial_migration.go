package versions

import (
	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"
	"github.com/claveora/OSIS-Integrated-Administration/osis/seed"

	"gorm.io/gorm"
)

// Migration_0_initial_schema creates the full table set and seeds the default
// roles, their permission matrix, and the default app settings.
func Migration_0_initial_schema(txn *gorm.DB) error {
	if err := txn.AutoMigrate(schema.AllTables()...); err != nil {
		return err
	}

	_, err := seed.EnsureDefaults(txn)
	return err
}
