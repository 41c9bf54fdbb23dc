package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAddressWithDefaults(t *testing.T) {
	got := Address{Line1: "12 Galle Road"}.WithDefaults()
	if got.City != DefaultCity || got.PostalCode != DefaultPostalCode || got.Country != DefaultCountry {
		t.Fatalf("expected defaults, got %+v", got)
	}

	kept := Address{Line1: "5 Temple Rd", City: "Kandy", PostalCode: "20000"}.WithDefaults()
	if kept.City != "Kandy" || kept.PostalCode != "20000" {
		t.Fatalf("explicit values should be kept, got %+v", kept)
	}
}

func TestAddressValueScanRoundTrip(t *testing.T) {
	line2 := "Apt 4"
	in := Address{Line1: "12 Galle Road", Line2: &line2, City: "Colombo", District: "Colombo"}
	val, err := in.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var out Address
	if err := out.Scan([]byte(val.(string))); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if out.Line1 != in.Line1 || out.Line2 == nil || *out.Line2 != line2 || out.District != "Colombo" {
		t.Fatalf("unexpected scan result %+v", out)
	}
	if len(out.Lines()) != 2 {
		t.Fatalf("expected two address lines, got %v", out.Lines())
	}

	var empty Address
	if err := empty.Scan(nil); err != nil || !empty.IsZero() {
		t.Fatalf("nil scan should yield zero address, got %+v err=%v", empty, err)
	}
}

func TestMoneyHelpers(t *testing.T) {
	amount := decimal.RequireFromString("5000")
	if FormatMoney(amount) != "5000.00" {
		t.Fatalf("unexpected format %s", FormatMoney(amount))
	}
	cents, err := ToCents(decimal.RequireFromString("1250.50"))
	if err != nil || cents != 125050 {
		t.Fatalf("unexpected cents %d err=%v", cents, err)
	}
	if _, err := ToCents(decimal.RequireFromString("1.005")); err == nil {
		t.Fatal("expected sub-cent amount to be rejected")
	}
}

func TestOutcomeConstructors(t *testing.T) {
	if !Succeeded().OK() || !Succeeded().Attempted {
		t.Fatal("expected succeeded outcome to be ok and attempted")
	}
	failed := Failed(errTest("boom"))
	if failed.OK() || failed.Error != "boom" || !failed.Attempted {
		t.Fatalf("unexpected failed outcome %+v", failed)
	}
	skipped := Skipped("pointer already set")
	if skipped.Attempted || skipped.OK() {
		t.Fatalf("unexpected skipped outcome %+v", skipped)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
