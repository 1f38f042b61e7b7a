package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// OpenInMemory returns a migrated private in-memory sqlite database. Each
// distinct name gets its own database.
func OpenInMemory(name string) (*gorm.DB, error) {
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	return OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}
