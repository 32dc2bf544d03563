package loader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/tax-recon/internal/domain"
	"github.com/dvloznov/tax-recon/internal/normalize"
)

func TestTransactionsMapsHeaderVariants(t *testing.T) {
	csv := strings.Join([]string{
		"Plan,SSN Number,Gross Amount,Export Date,Trans ID,Distribution,Full Name",
		"p1,123-45-6789,\"1,000.00\",2024-01-01,T1,Direct Rollover,Jane Doe",
	}, "\n")

	recs, err := Transactions(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	rec := recs[0]
	assert.Equal(t, "P1", rec.PlanID)
	assert.Equal(t, "123456789", rec.SSN)
	assert.Equal(t, 1000.00, rec.GrossAmt)
	assert.Equal(t, "T1", rec.TransID)
	assert.Equal(t, domain.DistRollover, rec.DistCategory)
	assert.Equal(t, "Jane Doe", rec.FullName)
	assert.Empty(t, rec.ValidationIssues)
}

func TestDisbursementsBadFieldsBecomeIssues(t *testing.T) {
	csv := strings.Join([]string{
		"plan_id,ssn,gross_amt,txn_date,tax_code_1,tax_code_2,transaction_id,account",
		"300005R,garbage,100.00,2024-02-01,1,,D1,ACC1",
	}, "\n")

	recs, err := Disbursements(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "", recs[0].SSN)
	assert.Contains(t, recs[0].ValidationIssues, normalize.IssueInvalidSSN)
	assert.Equal(t, "D1", recs[0].TransactionID)
}

func TestDemographicsOptionalDates(t *testing.T) {
	csv := strings.Join([]string{
		"plan_id,ssn,first_name,last_name,Date Of Birth,Termination Date",
		"P1,111223333,Jane,Doe,1963-06-15,",
		"P1,444556666,John,Roe,,2020-05-01",
	}, "\n")

	recs, err := Demographics(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.NotNil(t, recs[0].DOB)
	assert.Nil(t, recs[0].TermDate, "missing termination date is a legitimate value")
	assert.Nil(t, recs[1].DOB)
	assert.NotNil(t, recs[1].TermDate)
}

func TestBasisFloatArtifactYear(t *testing.T) {
	csv := strings.Join([]string{
		"plan_id,ssn,first_tax_year,roth_basis",
		"300005R,111223333,2018.0,5000.00",
	}, "\n")

	recs, err := Basis(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].FirstRothTaxYear)
	assert.Equal(t, 2018, *recs[0].FirstRothTaxYear)
	assert.Equal(t, 5000.00, recs[0].BasisAmt)
}

func TestUnknownColumnsAreDropped(t *testing.T) {
	csv := strings.Join([]string{
		"plan_id,ssn,gross_amt,txn_date,tax_code_1,transaction_id,totally_new_column",
		"P1,111223333,50.00,2024-02-01,7,D1,whatever",
	}, "\n")

	recs, err := Disbursements(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestNoRecognizedColumnsFails(t *testing.T) {
	csv := "alpha,beta\n1,2\n"
	_, err := Transactions(strings.NewReader(csv))
	require.Error(t, err)
}

func TestEmptyFileFails(t *testing.T) {
	_, err := Transactions(strings.NewReader(""))
	require.Error(t, err)
}
