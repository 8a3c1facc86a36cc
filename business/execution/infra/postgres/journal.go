// Package postgres journals execution attempts to PostgreSQL via pgx.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	arbDomain "github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/futarchy-arbitrage/business/execution/app"
	"github.com/fd1az/futarchy-arbitrage/business/execution/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ app.Journal = (*Journal)(nil)

// Config holds connection parameters.
type Config struct {
	DSN      string
	MaxConns int32
}

// Journal records every execution result with its step trace.
type Journal struct {
	pool  *pgxpool.Pool
	newID func() string
}

// New connects, pings and applies pending migrations.
func New(ctx context.Context, cfg Config) (*Journal, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	j := &Journal{pool: pool, newID: uuid.NewString}
	if err := j.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

// Close shuts down the pool.
func (j *Journal) Close() {
	j.pool.Close()
}

// Check reports database reachability for the health server.
func (j *Journal) Check(ctx context.Context) (bool, string) {
	if err := j.pool.Ping(ctx); err != nil {
		return false, err.Error()
	}
	return true, "ok"
}

// migrate applies embedded migrations in lexicographic order, tracking them
// in schema_migrations.
func (j *Journal) migrate(ctx context.Context) error {
	const createTracker = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`
	if _, err := j.pool.Exec(ctx, createTracker); err != nil {
		return fmt.Errorf("postgres: create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: read migrations dir: %w", err)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Name() < entries[b].Name() })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		var applied bool
		if err := j.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)", name,
		).Scan(&applied); err != nil {
			return fmt.Errorf("postgres: check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("postgres: read migration %s: %w", name, err)
		}

		tx, err := j.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("postgres: begin tx for %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("postgres: exec migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", name); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("postgres: record migration %s: %w", name, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("postgres: commit migration %s: %w", name, err)
		}
	}
	return nil
}

// Record inserts res and its trace in one transaction.
func (j *Journal) Record(ctx context.Context, opp *arbDomain.Opportunity, res *domain.Result) error {
	row := newExecutionRow(j.newID(), opp, res)

	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO executions (id, opportunity_id, proposal, block, mode, direction, borrow_token, borrow_amount,
			expected_profit, success, profit, repaid, leftover_yes_company, leftover_no_company,
			leftover_yes_currency, leftover_no_currency, leftover_company, failed_step, failure, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		row.args()...,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution: %w", err)
	}

	for _, s := range row.steps {
		_, err = tx.Exec(ctx, `
			INSERT INTO execution_steps (execution_id, seq, step, token_in, amount_in, token_out, amount_out)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			row.id, s.seq, s.step, s.tokenIn, s.amountIn, s.tokenOut, s.amountOut,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert execution step %d: %w", s.seq, err)
		}
	}
	return tx.Commit(ctx)
}

// executionRow is a result flattened to column values. Amounts are decimal
// strings bound to NUMERIC columns.
type executionRow struct {
	id             string
	opportunityID  string
	proposal       string
	block          int64
	mode           string
	direction      string
	borrowToken    string
	borrowAmount   string
	expectedProfit string
	success        bool
	profit         string
	repaid         string
	leftovers      [5]string
	failedStep     *string
	failure        *string
	executedAt     time.Time

	steps []stepRow
}

type stepRow struct {
	seq       int
	step      string
	tokenIn   *string
	amountIn  *string
	tokenOut  *string
	amountOut *string
}

func newExecutionRow(id string, opp *arbDomain.Opportunity, res *domain.Result) executionRow {
	row := executionRow{
		id:             id,
		opportunityID:  res.OpportunityID,
		proposal:       res.Proposal.Hex(),
		block:          int64(res.Block),
		mode:           string(res.Mode),
		direction:      string(res.Direction),
		borrowToken:    symbol(res.BorrowToken),
		borrowAmount:   res.BorrowAmount.String(),
		expectedProfit: "0",
		success:        res.Success,
		profit:         res.Profit.String(),
		repaid:         res.Repaid.String(),
		leftovers: [5]string{
			res.Leftovers.YesCompany.String(),
			res.Leftovers.NoCompany.String(),
			res.Leftovers.YesCurrency.String(),
			res.Leftovers.NoCurrency.String(),
			res.Leftovers.Company.String(),
		},
		executedAt: res.ExecutedAt,
	}
	if opp != nil {
		row.expectedProfit = opp.ExpectedProfit.String()
	}
	if !res.Success {
		step, failure := string(res.FailedStep), res.Failure
		row.failedStep, row.failure = &step, &failure
	}

	for i, rec := range res.Trace {
		s := stepRow{seq: i, step: string(rec.Step)}
		if rec.TokenIn != nil {
			token, amount := symbol(rec.TokenIn), rec.AmountIn.String()
			s.tokenIn, s.amountIn = &token, &amount
		}
		if rec.TokenOut != nil {
			token, amount := symbol(rec.TokenOut), rec.AmountOut.String()
			s.tokenOut, s.amountOut = &token, &amount
		}
		row.steps = append(row.steps, s)
	}
	return row
}

func (r executionRow) args() []any {
	return []any{
		r.id, r.opportunityID, r.proposal, r.block, r.mode, r.direction, r.borrowToken, r.borrowAmount,
		r.expectedProfit, r.success, r.profit, r.repaid,
		r.leftovers[0], r.leftovers[1], r.leftovers[2], r.leftovers[3], r.leftovers[4],
		r.failedStep, r.failure, r.executedAt,
	}
}

func symbol(a *asset.Asset) string {
	if a == nil {
		return ""
	}
	return a.Symbol()
}
