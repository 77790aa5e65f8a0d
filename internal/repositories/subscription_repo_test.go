package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"subsettle/internal/models"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type SubscriptionRepoTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	repo    SubscriptionRepository
	address string
	context context.Context
}

func (suite *SubscriptionRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewSubscriptionRepo(mock)
	suite.address = "0x00000000000000000000000000000000000000a1"
	suite.context = context.Background()
}

func (suite *SubscriptionRepoTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestSubscriptionRepoTestSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionRepoTestSuite))
}

func (suite *SubscriptionRepoTestSuite) TestGet_Found() {
	now := time.Now()
	expiresAt := now.Add(30 * 24 * time.Hour)

	rows := pgxmock.NewRows([]string{"address", "tier", "expires_at", "last_payment_amount", "payment_count", "created_at", "updated_at"}).
		AddRow(suite.address, models.TierMonthly, expiresAt, int64(10), 1, now, now)

	suite.mock.ExpectQuery(`
		SELECT address, tier, expires_at, last_payment_amount, payment_count, created_at, updated_at
		FROM subscriptions
		WHERE address = \$1
	`).WithArgs(suite.address).WillReturnRows(rows)

	subscription, err := suite.repo.Get(suite.context, suite.address)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.address, subscription.Address)
	assert.Equal(suite.T(), models.TierMonthly, subscription.Tier)
	assert.Equal(suite.T(), int64(10), subscription.LastPaymentAmount)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *SubscriptionRepoTestSuite) TestGet_UnknownAddressReturnsNil() {
	suite.mock.ExpectQuery(`
		SELECT address, tier, expires_at, last_payment_amount, payment_count, created_at, updated_at
		FROM subscriptions
		WHERE address = \$1
	`).WithArgs(suite.address).WillReturnRows(pgxmock.NewRows([]string{"address", "tier", "expires_at", "last_payment_amount", "payment_count", "created_at", "updated_at"}))

	subscription, err := suite.repo.Get(suite.context, suite.address)
	assert.NoError(suite.T(), err)
	assert.Nil(suite.T(), subscription)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *SubscriptionRepoTestSuite) TestGet_QueryError() {
	suite.mock.ExpectQuery(`SELECT address`).
		WithArgs(suite.address).
		WillReturnError(errors.New("connection refused"))

	_, err := suite.repo.Get(suite.context, suite.address)
	assert.Error(suite.T(), err)
}

func (suite *SubscriptionRepoTestSuite) TestList() {
	now := time.Now()
	rows := pgxmock.NewRows([]string{"address", "tier", "expires_at", "last_payment_amount", "payment_count", "created_at", "updated_at"}).
		AddRow(suite.address, models.TierYearly, now.Add(365*24*time.Hour), int64(100), 2, now, now).
		AddRow("0x00000000000000000000000000000000000000a2", models.TierMonthly, now, int64(10), 1, now, now)

	suite.mock.ExpectQuery(`
		SELECT address, tier, expires_at, last_payment_amount, payment_count, created_at, updated_at
		FROM subscriptions
		ORDER BY updated_at DESC
		LIMIT \$1 OFFSET \$2
	`).WithArgs(10, 0).WillReturnRows(rows)

	subscriptions, err := suite.repo.List(suite.context, 10, 0)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), subscriptions, 2)
	assert.Equal(suite.T(), models.TierYearly, subscriptions[0].Tier)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}
