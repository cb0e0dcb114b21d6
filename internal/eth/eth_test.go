package eth

import (
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseWei(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "one eth", input: "1000000000000000000", want: "1000000000000000000"},
		{name: "whitespace tolerated", input: " 42 ", want: "42"},
		{name: "zero", input: "0", want: "0"},
		{name: "empty", input: "", wantErr: true},
		{name: "not a number", input: "1.5e18", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWei(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse wei: %v", err)
			}
			if diff := cmp.Diff(tt.want, got.String()); diff != "" {
				t.Errorf("wei mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWeiToEthExact(t *testing.T) {
	wei, _ := ParseWei("1500000000000000000")
	got := WeiToEth(wei)
	want := big.NewRat(3, 2)
	if got.Cmp(want) != 0 {
		t.Errorf("WeiToEth = %s, want %s", got.RatString(), want.RatString())
	}

	// A single wei is preserved exactly.
	oneWei := WeiToEth(big.NewInt(1))
	if oneWei.Sign() != 1 {
		t.Error("one wei should convert to a positive value")
	}
	if WeiToEth(big.NewInt(2)).Cmp(oneWei) <= 0 {
		t.Error("two wei should be strictly greater than one wei")
	}
}

func TestParseEth(t *testing.T) {
	r, err := ParseEth("0.05")
	if err != nil {
		t.Fatalf("parse eth: %v", err)
	}
	if r.Cmp(big.NewRat(1, 20)) != 0 {
		t.Errorf("ParseEth(0.05) = %s, want 1/20", r.RatString())
	}
	if _, err := ParseEth("abc"); err == nil {
		t.Error("expected error for invalid input")
	}
}

func TestReadableEth(t *testing.T) {
	tests := []struct {
		name string
		wei  string
		want string
	}{
		{name: "one and a half", wei: "1500000000000000000", want: "1.5"},
		{name: "whole number", wei: "12000000000000000000", want: "12"},
		{name: "small value", wei: "1000000000000000", want: "0.001"},
		{name: "one gwei keeps precision", wei: "1000000000", want: "0.000000001"},
		{name: "single wei keeps precision", wei: "1", want: "0.000000000000000001"},
		{name: "zero", wei: "0", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wei, err := ParseWei(tt.wei)
			if err != nil {
				t.Fatalf("parse wei: %v", err)
			}
			if diff := cmp.Diff(tt.want, ReadableEth(wei)); diff != "" {
				t.Errorf("ReadableEth mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
