package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"subsettle/internal/models"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type SettlementStoreTestSuite struct {
	suite.Suite
	mock      pgxmock.PgxPoolIface
	store     SettlementStore
	journalID uuid.UUID
	context   context.Context
}

func (suite *SettlementStoreTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.store = NewSettlementStore(mock)
	suite.journalID = uuid.New()
	suite.context = context.Background()
}

func (suite *SettlementStoreTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestSettlementStoreTestSuite(t *testing.T) {
	suite.Run(t, new(SettlementStoreTestSuite))
}

func (suite *SettlementStoreTestSuite) fixtures() (*models.Subscription, *models.Receipt) {
	now := time.Now()
	subscription := &models.Subscription{
		Address:           "0x00000000000000000000000000000000000000a1",
		Tier:              models.TierYearly,
		ExpiresAt:         now.Add(365 * 24 * time.Hour),
		LastPaymentAmount: 100,
		PaymentCount:      1,
	}
	receipt := &models.Receipt{
		ID:            uuid.New(),
		Address:       subscription.Address,
		Tier:          models.TierYearly,
		PaymentToken:  "0x00000000000000000000000000000000000000c1",
		AmountIn:      100,
		AmountCharged: 100,
		NewExpiry:     subscription.ExpiresAt,
	}
	return subscription, receipt
}

func (suite *SettlementStoreTestSuite) TestCommit_Success() {
	subscription, receipt := suite.fixtures()

	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`INSERT INTO subscriptions`).
		WithArgs(subscription.Address, subscription.Tier, subscription.ExpiresAt, subscription.LastPaymentAmount).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectExec(`INSERT INTO receipts`).
		WithArgs(receipt.ID, receipt.Address, receipt.Tier, receipt.PaymentToken, receipt.AmountIn, receipt.AmountCharged, receipt.NewExpiry).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectExec(`UPDATE settlement_journal`).
		WithArgs(models.JournalCommitted, receipt.AmountCharged, suite.journalID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectCommit()

	err := suite.store.Commit(suite.context, suite.journalID, subscription, receipt)
	assert.NoError(suite.T(), err)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *SettlementStoreTestSuite) TestCommit_RollsBackOnUpsertFailure() {
	subscription, receipt := suite.fixtures()

	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`INSERT INTO subscriptions`).
		WithArgs(subscription.Address, subscription.Tier, subscription.ExpiresAt, subscription.LastPaymentAmount).
		WillReturnError(errors.New("deadlock detected"))
	suite.mock.ExpectRollback()

	err := suite.store.Commit(suite.context, suite.journalID, subscription, receipt)
	assert.Error(suite.T(), err)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *SettlementStoreTestSuite) TestCommit_RollsBackOnJournalFailure() {
	subscription, receipt := suite.fixtures()

	suite.mock.ExpectBegin()
	suite.mock.ExpectExec(`INSERT INTO subscriptions`).
		WithArgs(subscription.Address, subscription.Tier, subscription.ExpiresAt, subscription.LastPaymentAmount).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectExec(`INSERT INTO receipts`).
		WithArgs(receipt.ID, receipt.Address, receipt.Tier, receipt.PaymentToken, receipt.AmountIn, receipt.AmountCharged, receipt.NewExpiry).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	suite.mock.ExpectExec(`UPDATE settlement_journal`).
		WithArgs(models.JournalCommitted, receipt.AmountCharged, suite.journalID).
		WillReturnError(errors.New("connection reset"))
	suite.mock.ExpectRollback()

	err := suite.store.Commit(suite.context, suite.journalID, subscription, receipt)
	assert.Error(suite.T(), err)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}
