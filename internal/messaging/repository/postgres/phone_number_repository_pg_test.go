package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgPhoneNumberRepository_Create(t *testing.T) {
	t.Run("inserts a new number", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgPhoneNumberRepository()

		mockPool.ExpectExec(`INSERT INTO phone_numbers`).
			WithArgs(pgxmock.AnyArg(), "org-1", (*string)(nil), "+15550001111", false, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		pn, err := repo.Create(context.Background(), mockPool, &domain.PhoneNumber{
			OrgID: "org-1",
			E164:  "+15550001111",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, pn.ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("duplicate e164 maps to ErrNumberInUse", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgPhoneNumberRepository()

		mockPool.ExpectExec(`INSERT INTO phone_numbers`).
			WithArgs(pgxmock.AnyArg(), "org-1", (*string)(nil), "+15550001111", false, pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "phone_numbers_e164_key"})

		_, err = repo.Create(context.Background(), mockPool, &domain.PhoneNumber{
			OrgID: "org-1",
			E164:  "+15550001111",
		})
		assert.ErrorIs(t, err, domain.ErrNumberInUse)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgPhoneNumberRepository_GetByE164(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgPhoneNumberRepository()

		now := time.Now().UTC()
		rows := pgxmock.NewRows([]string{"id", "org_id", "provider_account_id", "e164", "verified", "created_at"}).
			AddRow("pn-1", "org-1", nil, "+15550001111", true, now)
		mockPool.ExpectQuery(`SELECT (.+) FROM phone_numbers WHERE e164`).
			WithArgs("+15550001111").
			WillReturnRows(rows)

		pn, err := repo.GetByE164(context.Background(), mockPool, "+15550001111")
		require.NoError(t, err)
		assert.Equal(t, "org-1", pn.OrgID)
		assert.True(t, pn.Verified)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("unmapped number maps to ErrUnknownDestination", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewPgPhoneNumberRepository()

		mockPool.ExpectQuery(`SELECT (.+) FROM phone_numbers WHERE e164`).
			WithArgs("+15550009999").
			WillReturnRows(pgxmock.NewRows([]string{"id", "org_id", "provider_account_id", "e164", "verified", "created_at"}))

		_, err = repo.GetByE164(context.Background(), mockPool, "+15550009999")
		assert.ErrorIs(t, err, domain.ErrUnknownDestination)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
