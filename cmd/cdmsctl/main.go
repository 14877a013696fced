// cdmsctl is the operator CLI for the compliance subsystem. It talks to the
// database directly with the same services the server uses, so it works even
// when the HTTP tier is down.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cdms/internal/domain/holds"
	"cdms/internal/domain/ledger"
	"cdms/internal/domain/retention"
	"cdms/internal/domain/rights"
	"cdms/internal/platform/config"
	"cdms/internal/platform/db"
	"cdms/internal/platform/email"
	"cdms/internal/platform/hashing"
)

const cliActor = "cdmsctl"

type services struct {
	ledger    *ledger.Service
	holds     *holds.Service
	rights    *rights.Service
	retention *retention.Service
	close     func()
}

func connect(ctx context.Context) (*services, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	hasher, err := hashing.New(cfg.HashAlgorithm)
	if err != nil {
		pool.Close()
		return nil, err
	}

	ledgerSvc := ledger.NewService(ledger.NewStore(pool), hasher, nil)
	holdsSvc := holds.NewService(holds.NewStore(pool), ledgerSvc)
	rightsSvc := rights.NewService(rights.NewStore(pool), ledgerSvc, holdsSvc, hasher, email.New(cfg), cfg.EmailFrom, nil)
	retentionSvc := retention.NewService(retention.NewStore(pool), ledgerSvc, holdsSvc, nil)

	return &services{
		ledger:    ledgerSvc,
		holds:     holdsSvc,
		rights:    rightsSvc,
		retention: retentionSvc,
		close:     pool.Close,
	}, nil
}

func main() {
	root := &cobra.Command{
		Use:           "cdmsctl",
		Short:         "Operate the compliance subsystem from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(scanCmd(), expiringCmd(), pendingCmd(), verifyCmd(), seedDemoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func scanCmd() *cobra.Command {
	var asOf string
	var enforce bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan retention records past their expiry date",
		RunE: func(cmd *cobra.Command, args []string) error {
			at := time.Now().UTC()
			if asOf != "" {
				parsed, err := time.Parse("2006-01-02", asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of %q: expected YYYY-MM-DD", asOf)
				}
				at = parsed
			}

			ctx := cmd.Context()
			svc, err := connect(ctx)
			if err != nil {
				return err
			}
			defer svc.close()

			if enforce {
				result, err := svc.retention.EnforceExpired(ctx, at, cliActor)
				if err != nil {
					return err
				}
				fmt.Printf("scanned=%d deleted=%d anonymized=%d review=%d skipped=%d\n",
					result.Scanned, result.Deleted, result.Anonymized, result.Review, result.Skipped)
				return nil
			}

			records, err := svc.retention.ScanExpired(ctx, at, cliActor)
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Printf("%s\t%s/%s\t%s\texpired %s\n",
					rec.ID, rec.RecordTable, rec.RecordKey, rec.Status, rec.ExpiryDate.Format("2006-01-02"))
			}
			fmt.Printf("%d expired record(s)\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluate expiry as of this date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&enforce, "enforce", false, "apply policy actions instead of only reporting")
	return cmd
}

func expiringCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "expiring",
		Short: "List retention records expiring within a window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1")
			}

			ctx := cmd.Context()
			svc, err := connect(ctx)
			if err != nil {
				return err
			}
			defer svc.close()

			records, err := svc.retention.ExpiringSoon(ctx, days)
			if err != nil {
				return err
			}
			for _, rec := range records {
				held := ""
				if rec.Hold {
					held = "\tHELD"
				}
				fmt.Printf("%s\t%s/%s\texpires %s%s\n",
					rec.ID, rec.RecordTable, rec.RecordKey, rec.ExpiryDate.Format("2006-01-02"), held)
			}
			fmt.Printf("%d record(s) expiring within %d day(s)\n", len(records), days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "window in days")
	return cmd
}

func pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending [kind]",
		Short: "List open rights requests, optionally filtered by kind",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := rights.Kinds()
			if len(args) == 1 {
				kind := rights.Kind(args[0])
				if !kind.Valid() {
					return fmt.Errorf("unknown kind %q", args[0])
				}
				kinds = []rights.Kind{kind}
			}

			ctx := cmd.Context()
			svc, err := connect(ctx)
			if err != nil {
				return err
			}
			defer svc.close()

			now := time.Now().UTC()
			total := 0
			for _, kind := range kinds {
				requests, err := svc.rights.PendingRequests(ctx, kind)
				if err != nil {
					return err
				}
				for _, req := range requests {
					flag := ""
					if req.EffectiveDueAt().Before(now) {
						flag = "\tOVERDUE"
					}
					fmt.Printf("%s\t%s\t%s\tdue %s%s\n",
						req.SequenceCode, req.SubjectID, req.Status, req.EffectiveDueAt().Format("2006-01-02"), flag)
				}
				total += len(requests)
			}
			fmt.Printf("%d open request(s)\n", total)
			return nil
		},
	}
}

func seedDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-demo",
		Short: "Load a small demo data set for local exploration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := connect(ctx)
			if err != nil {
				return err
			}
			defer svc.close()

			policy, err := svc.retention.CreatePolicy(ctx, retention.CreatePolicyInput{
				Category:       "DEMO_CONSENT",
				RetentionDays:  365,
				ActionOnExpiry: retention.ActionReview,
				Description:    "Demo consent forms, review on expiry",
			})
			if err != nil {
				return fmt.Errorf("create demo policy: %w", err)
			}

			record, err := svc.retention.Register(ctx, retention.RegisterInput{
				PolicyID:    policy.ID,
				Category:    policy.Category,
				RecordTable: "consent_forms",
				RecordKey:   "demo-form-1",
				SubjectID:   "demo-subject-1",
				CreatedDate: time.Now().UTC().AddDate(-2, 0, 0),
			}, cliActor)
			if err != nil {
				return fmt.Errorf("register demo record: %w", err)
			}

			hold, err := svc.holds.Create(ctx, holds.CreateHoldInput{
				HoldType:      holds.HoldRegulatory,
				SubjectIDs:    []string{"demo-subject-2"},
				AllCategories: true,
				Reason:        "Demo regulatory inquiry into subject records",
				LegalBasis:    "DEMO-2026-01",
			}, cliActor)
			if err != nil {
				return fmt.Errorf("create demo hold: %w", err)
			}

			request, err := svc.rights.CreateRequest(ctx, rights.CreateRequestInput{
				Kind:        rights.KindErasure,
				SubjectID:   "demo-subject-1",
				SubjectName: "Demo Subject",
				Grounds:     rights.GroundConsentWithdrawn,
				Detail:      "Demo erasure request",
			}, cliActor)
			if err != nil {
				return fmt.Errorf("create demo request: %w", err)
			}
			if _, err := svc.rights.AddItem(ctx, rights.KindErasure, request.ID, rights.AddItemInput{
				RecordTable:   "consent_forms",
				RecordKey:     "demo-form-1",
				Category:      "DEMO_CONSENT",
				ErasureMethod: rights.MethodAnonymize,
			}, cliActor); err != nil {
				return fmt.Errorf("add demo item: %w", err)
			}

			fmt.Printf("policy %s, record %s, hold %s, request %s\n",
				policy.ID, record.ID, hold.ID, request.SequenceCode)
			return nil
		},
	}
}

func verifyCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "verify [scope]",
		Short: "Verify ledger hash chains; exits 1 on any break",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && prefix == "" {
				return fmt.Errorf("provide a scope argument or --prefix")
			}

			ctx := cmd.Context()
			svc, err := connect(ctx)
			if err != nil {
				return err
			}
			defer svc.close()

			scopes := args
			if len(scopes) == 0 {
				infos, err := svc.ledger.Scopes(ctx, prefix, 10000)
				if err != nil {
					return err
				}
				for _, info := range infos {
					scopes = append(scopes, info.Scope)
				}
			}

			broken := 0
			for _, scope := range scopes {
				result, err := svc.ledger.Verify(ctx, scope)
				if err != nil {
					return err
				}
				if result.Valid {
					fmt.Printf("%s\tOK\t%d entries\n", result.Scope, result.Entries)
					continue
				}
				broken++
				pos := -1
				if result.BreakPosition != nil {
					pos = *result.BreakPosition
				}
				fmt.Printf("%s\tBROKEN at position %d: %s\n", result.Scope, pos, result.Reason)
			}

			if broken > 0 {
				return fmt.Errorf("%d of %d chain(s) failed verification", broken, len(scopes))
			}
			fmt.Printf("%d chain(s) verified\n", len(scopes))
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "verify every scope with this prefix")
	return cmd
}
