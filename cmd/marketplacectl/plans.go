package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/marketplace-backend/internal/http/response"
	"github.com/magabrotheeeer/marketplace-backend/internal/metrics"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
	"github.com/magabrotheeeer/marketplace-backend/internal/paymentprovider"
	"github.com/magabrotheeeer/marketplace-backend/internal/services/billing"
	"github.com/magabrotheeeer/marketplace-backend/internal/storage"
)

var defaultPlans = []models.PlanCreate{
	{Name: "Basic", Price: 9.99, Features: json.RawMessage(`["suppliers","resources"]`)},
	{Name: "Pro", Price: 29.99, Features: json.RawMessage(`["suppliers","resources","tasks","reports"]`)},
	{Name: "Enterprise", Price: 99.99, Features: json.RawMessage(`["suppliers","resources","tasks","reports","priority_support"]`)},
}

func (e *env) billing(db *storage.Storage) *billing.BillingService {
	processor := paymentprovider.NewClient(paymentprovider.Options{
		SecretKey:     e.cfg.SecretKey,
		WebhookSecret: e.cfg.WebhookSecret,
		Currency:      e.cfg.Currency,
		Interval:      e.cfg.Interval,
	})
	return billing.NewBillingService(db, db, db, processor, nil, metrics.NewNop(),
		billing.URLsFromFrontend(e.cfg.FrontendURL), e.log)
}

// readPlans читает тарифы из JSON-файла и проверяет их так же, как API.
func readPlans(path string) ([]models.PlanCreate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var plans []models.PlanCreate
	if err := json.Unmarshal(raw, &plans); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	v := response.NewValidator()
	for i, p := range plans {
		if err := v.Struct(p); err != nil {
			return nil, fmt.Errorf("plan #%d: %w", i+1, err)
		}
	}
	return plans, nil
}

func newSeedPlansCmd(e *env) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-plans",
		Short: "Create or update subscription plans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			plans := defaultPlans
			if file != "" {
				var err error
				if plans, err = readPlans(file); err != nil {
					return err
				}
			}
			db, err := e.storage(cmd.Context())
			if err != nil {
				return err
			}
			out, err := e.billing(db).SeedPlans(cmd.Context(), plans)
			if err != nil {
				return err
			}
			for _, p := range out {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%.2f\n", p.ID, p.Name, p.Price); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON file with plans (defaults to Basic, Pro, Enterprise)")
	return cmd
}

func newSyncPlansCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-plans",
		Short: "Create missing products and prices at the payment provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := e.storage(cmd.Context())
			if err != nil {
				return err
			}
			prices, err := e.billing(db).SyncPlans(cmd.Context())
			names := make([]string, 0, len(prices))
			for name := range prices {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if _, werr := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, prices[name]); werr != nil {
					return werr
				}
			}
			return err
		},
	}
}
