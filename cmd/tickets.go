package cmd

import (
	"encoding/json"
	"errors"

	"ticket-gate/internal/services"
	"ticket-gate/internal/status"
	"ticket-gate/internal/store"
	"ticket-gate/internal/ticketcode"

	"github.com/pocketbase/pocketbase"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// newTicketStore picks the backend selected by TICKET_STORE. It needs a
// bootstrapped app when the SQL backend is used.
func newTicketStore(app *pocketbase.PocketBase, redisClient *redis.Client) (store.TicketStore, error) {
	if redisClient != nil {
		return store.NewRedisStore(redisClient, nil), nil
	}

	// Conditional updates rely on SQLite serializing writers.
	sqlStore := store.NewSQLStore(app.NonconcurrentDB(), nil)
	if err := sqlStore.EnsureSchema(); err != nil {
		return nil, err
	}
	return sqlStore, nil
}

// newTicketsCommand adds offline gate tooling, e.g. `ticket-gate tickets redeem SP-1223324-02`.
func newTicketsCommand(app *pocketbase.PocketBase, redisClient *redis.Client) *cobra.Command {
	command := &cobra.Command{
		Use:   "tickets",
		Short: "Inspect and redeem issued tickets",
	}

	run := func(redeem bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ticketStore, err := newTicketStore(app, redisClient)
			if err != nil {
				return err
			}
			redemption := services.NewRedemptionService(ticketStore, ticketcode.New(nil), nil, nil)

			check := redemption.Check
			if redeem {
				check = redemption.Redeem
			}

			ticket, err := check(cmd.Context(), args[0])
			if err != nil && !(redeem && errors.Is(err, status.ErrAlreadyRedeemed)) {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(ticket); encErr != nil {
				return encErr
			}
			return err
		}
	}

	command.AddCommand(&cobra.Command{
		Use:          "lookup [ticket number]",
		Short:        "Show a ticket without redeeming it",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         run(false),
	})

	command.AddCommand(&cobra.Command{
		Use:          "redeem [ticket number]",
		Short:        "Mark a ticket used at the gate",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         run(true),
	})

	return command
}
