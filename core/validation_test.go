package core

import (
	"errors"
	"testing"
)

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		wantErr error
	}{
		{
			name:    "valid record",
			record:  Record{ID: "A1", Title: "X"},
			wantErr: nil,
		},
		{
			name:    "record without text is valid",
			record:  Record{ID: "A1"},
			wantErr: nil,
		},
		{
			name:    "empty id",
			record:  Record{Title: "X"},
			wantErr: ErrEmptyID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecord(tt.record)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateRecord() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRecord() error = %v, want %v", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidRecord) {
				t.Errorf("ValidateRecord() error should wrap ErrInvalidRecord, got %v", err)
			}
		})
	}
}

func TestValidateEmbeddingSet(t *testing.T) {
	tests := []struct {
		name    string
		set     EmbeddingSet
		wantErr error
	}{
		{
			name:    "combined only",
			set:     EmbeddingSet{SlotCombined: {0.1}},
			wantErr: nil,
		},
		{
			name:    "combined and fields",
			set:     EmbeddingSet{SlotCombined: {0.1}, SlotTitle: {0.2}},
			wantErr: nil,
		},
		{
			name:    "nil set",
			set:     nil,
			wantErr: ErrMissingCombined,
		},
		{
			name:    "empty combined",
			set:     EmbeddingSet{SlotCombined: {}, SlotTitle: {0.2}},
			wantErr: ErrMissingCombined,
		},
		{
			name:    "unknown slot",
			set:     EmbeddingSet{SlotCombined: {0.1}, Slot("summary"): {0.2}},
			wantErr: ErrUnknownSlot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmbeddingSet(tt.set)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateEmbeddingSet() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEmbeddingSet() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCacheEntry(t *testing.T) {
	valid := CacheEntry{RecordID: "A1", Fingerprint: "fp", Embeddings: EmbeddingSet{SlotCombined: {1}}}
	if err := ValidateCacheEntry(valid); err != nil {
		t.Fatalf("ValidateCacheEntry() unexpected error = %v", err)
	}

	noID := valid
	noID.RecordID = ""
	if err := ValidateCacheEntry(noID); !errors.Is(err, ErrEmptyID) {
		t.Errorf("expected ErrEmptyID, got %v", err)
	}

	noFP := valid
	noFP.Fingerprint = ""
	if err := ValidateCacheEntry(noFP); !errors.Is(err, ErrEmptyFingerprint) {
		t.Errorf("expected ErrEmptyFingerprint, got %v", err)
	}

	noCombined := valid
	noCombined.Embeddings = EmbeddingSet{SlotTitle: {1}}
	err := ValidateCacheEntry(noCombined)
	if !errors.Is(err, ErrMissingCombined) || !errors.Is(err, ErrInvalidCacheEntry) {
		t.Errorf("expected wrapped ErrMissingCombined, got %v", err)
	}
}
