package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mms-goldcore/internal/model"
	"mms-goldcore/internal/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore is the durable Store implementation. Every method that
// moves money runs in a single transaction; the balance guard lives in
// the UPDATE's WHERE clause so concurrent writers serialize on the
// account row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id            UUID PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    name          TEXT NOT NULL,
    referral_code TEXT NOT NULL UNIQUE,
    referrer_id   UUID REFERENCES accounts(id),
    status        TEXT NOT NULL DEFAULT 'active',
    balance       NUMERIC(20,8) NOT NULL DEFAULT 0 CHECK (balance >= 0),
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger_entries (
    id         UUID PRIMARY KEY,
    account_id UUID NOT NULL REFERENCES accounts(id),
    kind       TEXT NOT NULL,
    amount     NUMERIC(20,8) NOT NULL,
    status     TEXT NOT NULL,
    reference  TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries(account_id, created_at DESC);

CREATE TABLE IF NOT EXISTS positions (
    id          UUID PRIMARY KEY,
    account_id  UUID NOT NULL REFERENCES accounts(id),
    instrument  TEXT NOT NULL,
    side        TEXT NOT NULL,
    amount      NUMERIC(20,8) NOT NULL,
    leverage    NUMERIC(10,2) NOT NULL,
    margin      NUMERIC(20,8) NOT NULL,
    open_price  NUMERIC(20,8) NOT NULL,
    mark_price  NUMERIC(20,8) NOT NULL,
    profit      NUMERIC(20,8) NOT NULL DEFAULT 0,
    stop_loss   NUMERIC(20,8),
    take_profit NUMERIC(20,8),
    status      TEXT NOT NULL,
    close_price NUMERIC(20,8),
    opened_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    closed_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_positions_open ON positions(status) WHERE status = 'open';

CREATE TABLE IF NOT EXISTS investments (
    id           UUID PRIMARY KEY,
    account_id   UUID NOT NULL REFERENCES accounts(id),
    plan_id      TEXT NOT NULL,
    amount       NUMERIC(20,8) NOT NULL,
    daily_rate   NUMERIC(10,6) NOT NULL,
    total_return NUMERIC(20,8) NOT NULL,
    status       TEXT NOT NULL,
    started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    matures_at   TIMESTAMPTZ NOT NULL,
    last_payout  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_investments_active ON investments(status) WHERE status = 'active';

CREATE TABLE IF NOT EXISTS commissions (
    id             UUID PRIMARY KEY,
    beneficiary_id UUID NOT NULL REFERENCES accounts(id),
    source_id      UUID NOT NULL REFERENCES accounts(id),
    level          INT NOT NULL,
    activity_type  TEXT NOT NULL,
    base_amount    NUMERIC(20,8) NOT NULL,
    amount         NUMERIC(20,8) NOT NULL,
    status         TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    paid_at        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_commissions_pending ON commissions(created_at) WHERE status = 'pending';
`

func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, acc *model.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, email, password_hash, name, referral_code, referrer_id, status, balance, created_at)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9)`,
		acc.ID, acc.Email, acc.PasswordHash, acc.Name, acc.ReferralCode, acc.ReferrerID, acc.Status, acc.Balance, acc.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

const accountCols = `id, email, password_hash, name, referral_code, referrer_id, status, balance, created_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var acc model.Account
	err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.Name, &acc.ReferralCode, &acc.ReferrerID, &acc.Status, &acc.Balance, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id))
}

func (s *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE email = lower($1)`, email))
}

func (s *PostgresStore) GetAccountByReferralCode(ctx context.Context, code string) (*model.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE referral_code = $1`, code))
}

func (s *PostgresStore) ListAccountsByReferrer(ctx context.Context, referrerID string) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountCols+` FROM accounts WHERE referrer_id = $1 ORDER BY created_at`, referrerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *acc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetAccountStatus(ctx context.Context, id string, status types.AccountStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// applyEntryTx adds the delta to the balance and inserts the entry.
// The WHERE guard rejects a delta that would drive the balance
// negative; RowsAffected distinguishes that from a missing account.
func applyEntryTx(ctx context.Context, tx pgx.Tx, entry *model.LedgerEntry) error {
	tag, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $2
		WHERE id = $1 AND balance + $2 >= 0`,
		entry.AccountID, entry.Amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, entry.AccountID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInsufficientBalance
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, account_id, kind, amount, status, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.AccountID, entry.Kind, entry.Amount, entry.Status, entry.Reference, entry.CreatedAt)
	return err
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ApplyEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return applyEntryTx(ctx, tx, entry)
	})
}

func (s *PostgresStore) ListEntries(ctx context.Context, accountID string, limit int) ([]model.LedgerEntry, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, kind, amount, status, reference, created_at
		FROM ledger_entries WHERE account_id = $1
		ORDER BY created_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.LedgerEntry, 0)
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Amount, &e.Status, &e.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const positionCols = `id, account_id, instrument, side, amount, leverage, margin, open_price, mark_price, profit, stop_loss, take_profit, status, close_price, opened_at, closed_at`

func scanPosition(row pgx.Row) (*model.Position, error) {
	var p model.Position
	err := row.Scan(&p.ID, &p.AccountID, &p.Instrument, &p.Side, &p.Amount, &p.Leverage, &p.Margin,
		&p.OpenPrice, &p.MarkPrice, &p.Profit, &p.StopLoss, &p.TakeProfit, &p.Status, &p.ClosePrice, &p.OpenedAt, &p.ClosedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) OpenPosition(ctx context.Context, p *model.Position, margin *model.LedgerEntry) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := applyEntryTx(ctx, tx, margin); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO positions (`+positionCols+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			p.ID, p.AccountID, p.Instrument, p.Side, p.Amount, p.Leverage, p.Margin,
			p.OpenPrice, p.MarkPrice, p.Profit, p.StopLoss, p.TakeProfit, p.Status, p.ClosePrice, p.OpenedAt, p.ClosedAt)
		return err
	})
}

func (s *PostgresStore) GetPosition(ctx context.Context, id string) (*model.Position, error) {
	return scanPosition(s.pool.QueryRow(ctx, `SELECT `+positionCols+` FROM positions WHERE id = $1`, id))
}

func (s *PostgresStore) listPositions(ctx context.Context, query string, args ...any) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Position, 0)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListOpenPositions(ctx context.Context) ([]model.Position, error) {
	return s.listPositions(ctx, `SELECT `+positionCols+` FROM positions WHERE status = 'open' ORDER BY opened_at`)
}

func (s *PostgresStore) ListPositionsByAccount(ctx context.Context, accountID string) ([]model.Position, error) {
	return s.listPositions(ctx, `SELECT `+positionCols+` FROM positions WHERE account_id = $1 ORDER BY opened_at`, accountID)
}

func (s *PostgresStore) UpdatePositionMark(ctx context.Context, id string, mark, profit decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE positions SET mark_price = $2, profit = $3
		WHERE id = $1 AND status = 'open'`, id, mark, profit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetPosition(ctx, id); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) SettlePosition(ctx context.Context, id string, closePrice, profit decimal.Decimal, closedAt time.Time, settlement *model.LedgerEntry) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE positions SET status = 'closed', mark_price = $2, profit = $3, close_price = $2, closed_at = $4
			WHERE id = $1 AND status = 'open'`, id, closePrice, profit, closedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM positions WHERE id = $1)`, id).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrInvalidState
		}
		if settlement != nil {
			return applyEntryTx(ctx, tx, settlement)
		}
		return nil
	})
}

const investmentCols = `id, account_id, plan_id, amount, daily_rate, total_return, status, started_at, matures_at, last_payout`

func scanInvestment(row pgx.Row) (*model.Investment, error) {
	var inv model.Investment
	err := row.Scan(&inv.ID, &inv.AccountID, &inv.PlanID, &inv.Amount, &inv.DailyRate, &inv.TotalReturn,
		&inv.Status, &inv.StartedAt, &inv.MaturesAt, &inv.LastPayout)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *PostgresStore) CreateInvestment(ctx context.Context, inv *model.Investment, debit *model.LedgerEntry) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if debit != nil {
			if err := applyEntryTx(ctx, tx, debit); err != nil {
				return err
			}
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO investments (`+investmentCols+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			inv.ID, inv.AccountID, inv.PlanID, inv.Amount, inv.DailyRate, inv.TotalReturn,
			inv.Status, inv.StartedAt, inv.MaturesAt, inv.LastPayout)
		return err
	})
}

func (s *PostgresStore) GetInvestment(ctx context.Context, id string) (*model.Investment, error) {
	return scanInvestment(s.pool.QueryRow(ctx, `SELECT `+investmentCols+` FROM investments WHERE id = $1`, id))
}

func (s *PostgresStore) listInvestments(ctx context.Context, query string, args ...any) ([]model.Investment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Investment, 0)
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListInvestmentsByAccount(ctx context.Context, accountID string) ([]model.Investment, error) {
	return s.listInvestments(ctx, `SELECT `+investmentCols+` FROM investments WHERE account_id = $1 ORDER BY started_at`, accountID)
}

func (s *PostgresStore) ListActiveInvestments(ctx context.Context) ([]model.Investment, error) {
	return s.listInvestments(ctx, `SELECT `+investmentCols+` FROM investments WHERE status = 'active' ORDER BY started_at`)
}

func (s *PostgresStore) RecordInterest(ctx context.Context, investmentID string, payoutAt time.Time, credit *model.LedgerEntry) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE investments SET last_payout = $2
			WHERE id = $1 AND status = 'active'`, investmentID, payoutAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM investments WHERE id = $1)`, investmentID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrInvalidState
		}
		return applyEntryTx(ctx, tx, credit)
	})
}

func (s *PostgresStore) FinishInvestment(ctx context.Context, id string, from, to types.InvestmentStatus, credit *model.LedgerEntry) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE investments SET status = $3
			WHERE id = $1 AND status = $2`, id, from, to)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM investments WHERE id = $1)`, id).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrInvalidState
		}
		if credit != nil {
			return applyEntryTx(ctx, tx, credit)
		}
		return nil
	})
}

const commissionCols = `id, beneficiary_id, source_id, level, activity_type, base_amount, amount, status, created_at, paid_at`

func scanCommission(row pgx.Row) (*model.Commission, error) {
	var c model.Commission
	err := row.Scan(&c.ID, &c.BeneficiaryID, &c.SourceID, &c.Level, &c.ActivityType,
		&c.BaseAmount, &c.Amount, &c.Status, &c.CreatedAt, &c.PaidAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateCommission(ctx context.Context, c *model.Commission) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO commissions (`+commissionCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.BeneficiaryID, c.SourceID, c.Level, c.ActivityType,
		c.BaseAmount, c.Amount, c.Status, c.CreatedAt, c.PaidAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PostgresStore) GetCommission(ctx context.Context, id string) (*model.Commission, error) {
	return scanCommission(s.pool.QueryRow(ctx, `SELECT `+commissionCols+` FROM commissions WHERE id = $1`, id))
}

func (s *PostgresStore) listCommissions(ctx context.Context, query string, args ...any) ([]model.Commission, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Commission, 0)
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPendingCommissions(ctx context.Context, limit int) ([]model.Commission, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.listCommissions(ctx, `
		SELECT `+commissionCols+` FROM commissions
		WHERE status = 'pending' ORDER BY created_at LIMIT $1`, limit)
}

func (s *PostgresStore) ListCommissionsByBeneficiary(ctx context.Context, beneficiaryID string) ([]model.Commission, error) {
	return s.listCommissions(ctx, `
		SELECT `+commissionCols+` FROM commissions
		WHERE beneficiary_id = $1 ORDER BY created_at`, beneficiaryID)
}

func (s *PostgresStore) PayCommission(ctx context.Context, id string, paidAt time.Time, credit *model.LedgerEntry) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE commissions SET status = 'paid', paid_at = $2
			WHERE id = $1 AND status = 'pending'`, id, paidAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM commissions WHERE id = $1)`, id).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrInvalidState
		}
		return applyEntryTx(ctx, tx, credit)
	})
}

func (s *PostgresStore) SumPaidCommissions(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT beneficiary_id, COALESCE(SUM(amount), 0)
		FROM commissions
		WHERE status = 'paid' AND paid_at >= $1 AND paid_at < $2
		GROUP BY beneficiary_id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var id string
		var total decimal.Decimal
		if err := rows.Scan(&id, &total); err != nil {
			return nil, err
		}
		out[id] = total
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
