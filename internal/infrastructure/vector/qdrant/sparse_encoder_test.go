package qdrant

import "testing"

func TestEncodeSparseQueryDeterministic(t *testing.T) {
	v1 := encodeSparseQuery("goroutine leak in worker pool")
	v2 := encodeSparseQuery("goroutine leak in worker pool")
	if len(v1.Indices) != len(v2.Indices) || len(v1.Values) != len(v2.Values) {
		t.Fatalf("vector sizes mismatch: v1=%d/%d v2=%d/%d", len(v1.Indices), len(v1.Values), len(v2.Indices), len(v2.Values))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] {
			t.Fatalf("indices mismatch at %d: %d vs %d", i, v1.Indices[i], v2.Indices[i])
		}
		if v1.Values[i] != v2.Values[i] {
			t.Fatalf("values mismatch at %d: %f vs %f", i, v1.Values[i], v2.Values[i])
		}
	}
}

func TestEncodeSparseQuerySortsIndices(t *testing.T) {
	v := encodeSparseQuery("zulu alpha beta gamma")
	if len(v.Indices) == 0 {
		t.Fatalf("expected non-empty sparse vector")
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] > v.Indices[i] {
			t.Fatalf("indices not sorted at %d: %d > %d", i, v.Indices[i-1], v.Indices[i])
		}
	}
}

func TestEncodeSparseQueryEmptyNoiseInput(t *testing.T) {
	v := encodeSparseQuery("___---!!!")
	if len(v.Indices) != 0 || len(v.Values) != 0 {
		t.Fatalf("expected empty sparse vector, got %+v", v)
	}
}

func TestEncodeSparseDocumentBoostsTitleTerms(t *testing.T) {
	plain := encodeSparseDocument("asyncio tutorial body text", "")
	boosted := encodeSparseDocument("asyncio tutorial body text", "asyncio")

	idx := hashToken("asyncio")
	find := func(v sparseVector) float32 {
		for i, candidate := range v.Indices {
			if candidate == idx {
				return v.Values[i]
			}
		}
		t.Fatalf("token not found in sparse vector")
		return 0
	}
	if find(boosted) <= find(plain) {
		t.Fatalf("title occurrence must increase term weight: %f vs %f", find(boosted), find(plain))
	}
}

func TestTokenizeAlphaNumUnicodeAndDigitsStability(t *testing.T) {
	tokens := tokenizeAlphaNum("Привет RFC_7231 rev-2")
	if len(tokens) == 0 {
		t.Fatalf("expected tokens, got empty")
	}
	foundRFC := false
	foundNum := false
	for _, tok := range tokens {
		if tok == "rfc" {
			foundRFC = true
		}
		if tok == "7231" {
			foundNum = true
		}
	}
	if !foundRFC || !foundNum {
		t.Fatalf("expected rfc and 7231 tokens, got %v", tokens)
	}
}
