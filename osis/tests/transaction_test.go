package tests

import (
	"testing"
	"time"
)

func TestTransactionStatistics(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()

	fixtures := []struct {
		title  string
		kind   string
		amount float64
	}{
		{"Iuran anggota", "income", 500000},
		{"Sponsor pensi", "income", 1500000},
		{"Sewa sound system", "expense", 750000},
		{"Konsumsi rapat", "expense", 150000},
	}

	for _, f := range fixtures {
		if _, err := admin.createTransaction(f.title, f.kind, f.amount, now); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := admin.transactionStatistics()
	if err != nil {
		t.Fatal(err)
	}

	if stats.TotalIncome != 2000000 {
		t.Fatalf("expected total income 2000000, got %v", stats.TotalIncome)
	}
	if stats.TotalExpense != 900000 {
		t.Fatalf("expected total expense 900000, got %v", stats.TotalExpense)
	}
	if stats.Balance != 1100000 {
		t.Fatalf("expected balance 1100000, got %v", stats.Balance)
	}
	if stats.Count != 4 {
		t.Fatalf("expected count 4, got %v", stats.Count)
	}
}

func TestTransactionMonthlyAggregates(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	year := 2025
	march := time.Date(year, time.March, 10, 0, 0, 0, 0, time.UTC)
	july := time.Date(year, time.July, 2, 0, 0, 0, 0, time.UTC)
	otherYear := time.Date(year-1, time.March, 10, 0, 0, 0, 0, time.UTC)

	if _, err := admin.createTransaction("Dana BOS", "income", 300000, march); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.createTransaction("Banner", "expense", 100000, march); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.createTransaction("Kas kelas", "income", 50000, july); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.createTransaction("Lama", "income", 999999, otherYear); err != nil {
		t.Fatal(err)
	}

	months, err := admin.monthlyTransactions(year)
	if err != nil {
		t.Fatal(err)
	}
	if len(months) != 12 {
		t.Fatalf("expected 12 month buckets, got %d", len(months))
	}

	if months[2].Income != 300000 || months[2].Expense != 100000 {
		t.Fatalf("unexpected march bucket: %+v", months[2])
	}
	if months[6].Income != 50000 {
		t.Fatalf("unexpected july bucket: %+v", months[6])
	}
	if months[0].Income != 0 || months[0].Expense != 0 {
		t.Fatalf("expected empty january bucket, got %+v", months[0])
	}
}

func TestTransactionFilters(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	early := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)

	if _, err := admin.createTransaction("Awal tahun", "income", 100, early); err != nil {
		t.Fatal(err)
	}
	if _, err := admin.createTransaction("Tengah tahun", "expense", 200, late); err != nil {
		t.Fatal(err)
	}

	var res struct {
		Data []struct {
			Title string `json:"title"`
		} `json:"data"`
		Pagination struct {
			Total int64 `json:"total"`
		} `json:"pagination"`
	}

	if err := admin.Get("/transactions?type=expense").Do(&res); err != nil {
		t.Fatal(err)
	}
	if res.Pagination.Total != 1 || res.Data[0].Title != "Tengah tahun" {
		t.Fatalf("unexpected type filter result: %+v", res)
	}

	if err := admin.Get("/transactions?start_date=2025-03-01").Do(&res); err != nil {
		t.Fatal(err)
	}
	if res.Pagination.Total != 1 || res.Data[0].Title != "Tengah tahun" {
		t.Fatalf("unexpected start_date filter result: %+v", res)
	}

	if err := admin.Get("/transactions?end_date=2025-03-01").Do(&res); err != nil {
		t.Fatal(err)
	}
	if res.Pagination.Total != 1 || res.Data[0].Title != "Awal tahun" {
		t.Fatalf("unexpected end_date filter result: %+v", res)
	}
}

func TestTransactionCreatorSurvivesUserDelete(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	username := uniqueName("bendahara")
	treasurer, err := env.newUserWithRole(username, env.adminRoleId)
	if err != nil {
		t.Fatal(err)
	}

	txnId, err := treasurer.createTransaction("Kas", "income", 1000, time.Now().UTC())
	if err != nil {
		t.Fatal(err)
	}

	if err := admin.Delete("/users/" + userIdByUsername(t, env, username)).Do(nil); err != nil {
		t.Fatal(err)
	}

	var res struct {
		Id        string  `json:"id"`
		CreatedBy *string `json:"created_by"`
	}
	if err := admin.Get("/transactions/" + txnId).Do(&res); err != nil {
		t.Fatal(err)
	}
	if res.CreatedBy != nil {
		t.Fatalf("expected created_by to be nulled after user delete, got %v", *res.CreatedBy)
	}
}
