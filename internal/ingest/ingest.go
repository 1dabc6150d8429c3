// Package ingest adapts an already-preprocessed CSV message stream into the
// domain.Message union the core consumes. The raw binary tokenizer and the
// CSV preprocessing logic that produces this file are external
// collaborators out of scope here; this package only parses the
// already-tagged, already-fielded rows.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"ordersim/internal/domain"
)

var kindByName = map[string]domain.Kind{
	"AddAsk": domain.AddAsk, "AddBid": domain.AddBid,
	"AddAskAgent": domain.AddAskAgent, "AddBidAgent": domain.AddBidAgent,
	"ExecuteAsk": domain.ExecuteAsk, "ExecuteBid": domain.ExecuteBid,
	"MarketBuy": domain.MarketBuy, "MarketSell": domain.MarketSell,
	"CancelAsk": domain.CancelAsk, "CancelBid": domain.CancelBid,
	"DeleteAsk": domain.DeleteAsk, "DeleteBid": domain.DeleteBid,
	"ReplaceAsk": domain.ReplaceAsk, "ReplaceBid": domain.ReplaceBid,
}

// Row layout, one record per message: kind,ref,timestamp,price,shares,new_ref.
// Fields the kind doesn't use are left blank and parse as zero.
const fieldsPerRecord = 6

// LoadFile reads a preprocessed message CSV from path.
func LoadFile(path string) ([]domain.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a preprocessed message CSV from r.
func Load(r io.Reader) ([]domain.Message, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = fieldsPerRecord
	reader.ReuseRecord = true

	var messages []domain.Message
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read record %d: %w", len(messages)+1, err)
		}
		msg, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("ingest: record %d: %w", len(messages)+1, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func parseRecord(record []string) (domain.Message, error) {
	kind, ok := kindByName[record[0]]
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: %q", domain.ErrInvalidMessageTag, record[0])
	}

	ref, err := parseInt(record[1])
	if err != nil {
		return domain.Message{}, fmt.Errorf("ref: %w", err)
	}
	ts, err := parseInt(record[2])
	if err != nil {
		return domain.Message{}, fmt.Errorf("timestamp: %w", err)
	}
	price, err := parseIntOrZero(record[3])
	if err != nil {
		return domain.Message{}, fmt.Errorf("price: %w", err)
	}
	shares, err := parseIntOrZero(record[4])
	if err != nil {
		return domain.Message{}, fmt.Errorf("shares: %w", err)
	}
	newRef, err := parseIntOrZero(record[5])
	if err != nil {
		return domain.Message{}, fmt.Errorf("new_ref: %w", err)
	}

	return domain.Message{
		Kind: kind, Ref: ref, Timestamp: ts, Price: price, Shares: shares, NewRef: newRef,
	}, nil
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

func parseIntOrZero(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
