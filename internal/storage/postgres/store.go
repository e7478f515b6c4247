// Package postgres provides a pgx-backed store for the card service.
//
// It is intentionally small and explicit: it maps between the domain
// entities and SQL rows and runs the necessary statements/transactions.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/govalues/decimal"
	"github.com/govalues/money"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turgut5534/amic-card-app/internal/errs"
	"github.com/turgut5534/amic-card-app/internal/fuelcard"
)

// Store holds a pgx connection pool and implements the ledger store
// interfaces. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// Migrate creates the expected schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		create table if not exists cards (
			id            uuid primary key,
			name          text not null,
			balance_minor bigint not null,
			created_at    timestamptz not null default now()
		);
		create table if not exists transactions (
			id            uuid primary key,
			card_id       uuid not null references cards(id) on delete cascade,
			kind          text not null,
			amount_minor  bigint not null,
			balance_minor bigint not null,
			liters        text not null default '',
			price_minor   bigint not null default 0,
			created_at    timestamptz not null
		);
		create index if not exists transactions_card_date_idx
			on transactions (card_id, created_at desc);
	`)
	return err
}

// SeedDev inserts the two default dev cards, for quick local
// testing. Fresh UUIDs each run.
func (s *Store) SeedDev(ctx context.Context) ([]fuelcard.Card, error) {
	cards := []fuelcard.Card{
		{ID: uuid.New(), Name: "E100"},
		{ID: uuid.New(), Name: "Amic"},
	}
	for _, c := range cards {
		if _, err := s.pool.Exec(ctx,
			`insert into cards (id, name, balance_minor) values ($1, $2, $3)`,
			c.ID, c.Name, int64(10000)); err != nil {
			return nil, err
		}
	}
	return cards, nil
}

// Load implements ledger.Store: card row plus newest-first transactions.
func (s *Store) Load(ctx context.Context, cardID uuid.UUID) (fuelcard.CardState, error) {
	var name string
	var balMinor int64
	err := s.pool.QueryRow(ctx,
		`select name, balance_minor from cards where id = $1`, cardID).
		Scan(&name, &balMinor)
	if errors.Is(err, pgx.ErrNoRows) {
		return fuelcard.CardState{}, errs.ErrNotFound
	}
	if err != nil {
		return fuelcard.CardState{}, err
	}
	st := fuelcard.CardState{
		Card:    fuelcard.Card{ID: cardID, Name: name},
		Balance: fuelcard.AmountFromMinor(balMinor),
	}
	rows, err := s.pool.Query(ctx, `
		select id, kind, amount_minor, balance_minor, liters, price_minor, created_at
		from transactions where card_id = $1
		order by created_at desc, id desc`, cardID)
	if err != nil {
		return fuelcard.CardState{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var tx fuelcard.Transaction
		var kind, liters string
		var amtMinor, txBalMinor, priceMinor int64
		if err := rows.Scan(&tx.ID, &kind, &amtMinor, &txBalMinor, &liters, &priceMinor, &tx.Date); err != nil {
			return fuelcard.CardState{}, err
		}
		tx.Kind = fuelcard.TxKind(kind)
		tx.Amount = fuelcard.AmountFromMinor(amtMinor)
		tx.Balance = fuelcard.AmountFromMinor(txBalMinor)
		tx.UnitPrice = fuelcard.AmountFromMinor(priceMinor)
		if liters != "" {
			if tx.Liters, err = decimal.Parse(liters); err != nil {
				return fuelcard.CardState{}, fmt.Errorf("card %s: bad liters %q", cardID, liters)
			}
		}
		st.History = append(st.History, tx)
	}
	return st, rows.Err()
}

// Save implements ledger.Store by rewriting the card's ledger in one
// transaction. Used by the slow paths (history clear); appends go through
// AppendTransaction.
func (s *Store) Save(ctx context.Context, st fuelcard.CardState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, `
		insert into cards (id, name, balance_minor) values ($1, $2, $3)
		on conflict (id) do update set name = excluded.name, balance_minor = excluded.balance_minor`,
		st.Card.ID, st.Card.Name, fuelcard.MinorUnits(st.Balance)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `delete from transactions where card_id = $1`, st.Card.ID); err != nil {
		return err
	}
	for _, rec := range st.History {
		if err := insertTx(ctx, tx, st.Card.ID, rec); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// AppendTransaction persists one new transaction and the resulting balance
// atomically.
func (s *Store) AppendTransaction(ctx context.Context, card fuelcard.Card, rec fuelcard.Transaction) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	ct, err := tx.Exec(ctx, `update cards set balance_minor = $2 where id = $1`,
		card.ID, fuelcard.MinorUnits(rec.Balance))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	if err := insertTx(ctx, tx, card.ID, rec); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateCard inserts a new card with its opening balance.
func (s *Store) CreateCard(ctx context.Context, card fuelcard.Card, opening money.Amount) (fuelcard.Card, error) {
	_, err := s.pool.Exec(ctx,
		`insert into cards (id, name, balance_minor) values ($1, $2, $3)`,
		card.ID, card.Name, fuelcard.MinorUnits(opening))
	if err != nil {
		return fuelcard.Card{}, err
	}
	return card, nil
}

func insertTx(ctx context.Context, tx pgx.Tx, cardID uuid.UUID, rec fuelcard.Transaction) error {
	liters := ""
	if rec.Kind == fuelcard.TxSpend {
		liters = rec.Liters.String()
	}
	_, err := tx.Exec(ctx, `
		insert into transactions (id, card_id, kind, amount_minor, balance_minor, liters, price_minor, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, cardID, string(rec.Kind), fuelcard.MinorUnits(rec.Amount),
		fuelcard.MinorUnits(rec.Balance), liters, fuelcard.MinorUnits(rec.UnitPrice), rec.Date)
	return err
}
