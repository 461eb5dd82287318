package migrations

import (
	"ticket-gate/internal/store"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		return store.EnsureSchema(app.DB())
	}, func(app core.App) error {
		_, err := app.DB().DropTable(store.TicketsTable).Execute()
		return err
	})
}
