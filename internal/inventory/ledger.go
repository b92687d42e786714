package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix       = "inventory:stock:"
	reservationKeyPrefix = "inventory:reservation:"
	processedKeyPrefix   = "inventory:processed:"

	markerReserved       = "reserved"
	markerRejectedPrefix = "rejected:"
)

// Line is the aggregated quantity of one product in an order.
type Line struct {
	ProductID string
	Quantity  int
}

// Outcome is the decision taken for one order.
type Outcome struct {
	// Reserved is set when every line was covered and stock was taken.
	Reserved bool
	// ProductID is the first product that could not be covered.
	ProductID string
	// Duplicate is set when the order had already been decided and the
	// recorded outcome was returned without touching any counter.
	Duplicate bool
}

// Ledger is the stock store. Reserve and Release are each atomic across all
// counters they touch.
type Ledger interface {
	SetStock(ctx context.Context, productID string, stock int) error
	Reserve(ctx context.Context, orderID string, lines []Line) (Outcome, error)
	Release(ctx context.Context, orderID string, restore bool) (map[string]int, error)
	Stock(ctx context.Context, productID string) (int, error)
	Reservation(ctx context.Context, orderID string) (map[string]int, error)
}

// The check pass and the mutation pass run in one script, so no other
// reservation can interleave between them.
//
// KEYS: reservation, processed marker, stock keys...
// ARGV: reservation ttl ms, marker ttl ms, then productId, quantity pairs
var reserveScript = redis.NewScript(`
local marker = redis.call('GET', KEYS[2])
if marker then
  return {'duplicate', marker}
end
local n = #KEYS - 2
for i = 1, n do
  local stock = tonumber(redis.call('GET', KEYS[i + 2]) or '0')
  if stock < tonumber(ARGV[2 + 2 * i]) then
    local pid = ARGV[1 + 2 * i]
    redis.call('SET', KEYS[2], 'rejected:' .. pid, 'PX', ARGV[2])
    return {'rejected', pid}
  end
end
for i = 1, n do
  redis.call('DECRBY', KEYS[i + 2], ARGV[2 + 2 * i])
  redis.call('HSET', KEYS[1], ARGV[1 + 2 * i], ARGV[2 + 2 * i])
end
if n > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
redis.call('SET', KEYS[2], 'reserved', 'PX', ARGV[2])
return {'reserved', ''}
`)

// Stock keys are derived from the hash fields, so the ledger assumes a
// single Redis node (or a proxy that does not enforce key slots).
//
// KEYS: reservation
// ARGV: restore flag, stock key prefix
var releaseScript = redis.NewScript(`
local entries = redis.call('HGETALL', KEYS[1])
if #entries == 0 then
  return {}
end
if ARGV[1] == '1' then
  for i = 1, #entries, 2 do
    redis.call('INCRBY', ARGV[2] .. entries[i], entries[i + 1])
  end
end
redis.call('DEL', KEYS[1])
return entries
`)

type RedisLedger struct {
	rdb            redis.UniversalClient
	reservationTTL time.Duration
	markerTTL      time.Duration
}

// NewRedisLedger returns a Ledger on rdb. Reservation records expire after
// reservationTTL and processed markers after markerTTL.
func NewRedisLedger(rdb redis.UniversalClient, reservationTTL, markerTTL time.Duration) *RedisLedger {
	if reservationTTL <= 0 {
		reservationTTL = 24 * time.Hour
	}
	if markerTTL <= 0 {
		markerTTL = 7 * 24 * time.Hour
	}
	return &RedisLedger{rdb: rdb, reservationTTL: reservationTTL, markerTTL: markerTTL}
}

func stockKey(productID string) string     { return stockKeyPrefix + productID }
func reservationKey(orderID string) string { return reservationKeyPrefix + orderID }
func processedKey(orderID string) string   { return processedKeyPrefix + orderID }

func (l *RedisLedger) SetStock(ctx context.Context, productID string, stock int) error {
	return l.rdb.Set(ctx, stockKey(productID), stock, 0).Err()
}

func (l *RedisLedger) Reserve(ctx context.Context, orderID string, lines []Line) (Outcome, error) {
	keys := make([]string, 0, len(lines)+2)
	keys = append(keys, reservationKey(orderID), processedKey(orderID))
	args := make([]any, 0, 2*len(lines)+2)
	args = append(args, l.reservationTTL.Milliseconds(), l.markerTTL.Milliseconds())
	for _, line := range lines {
		keys = append(keys, stockKey(line.ProductID))
		args = append(args, line.ProductID, line.Quantity)
	}

	res, err := reserveScript.Run(ctx, l.rdb, keys, args...).StringSlice()
	if err != nil {
		return Outcome{}, fmt.Errorf("reserve %s: %w", orderID, err)
	}
	if len(res) != 2 {
		return Outcome{}, fmt.Errorf("reserve %s: unexpected reply %v", orderID, res)
	}

	switch res[0] {
	case "reserved":
		return Outcome{Reserved: true}, nil
	case "rejected":
		return Outcome{ProductID: res[1]}, nil
	case "duplicate":
		return parseMarker(res[1])
	default:
		return Outcome{}, fmt.Errorf("reserve %s: unexpected status %q", orderID, res[0])
	}
}

func parseMarker(marker string) (Outcome, error) {
	if marker == markerReserved {
		return Outcome{Reserved: true, Duplicate: true}, nil
	}
	if pid, ok := strings.CutPrefix(marker, markerRejectedPrefix); ok {
		return Outcome{ProductID: pid, Duplicate: true}, nil
	}
	return Outcome{}, fmt.Errorf("unrecognized reservation marker %q", marker)
}

func (l *RedisLedger) Release(ctx context.Context, orderID string, restore bool) (map[string]int, error) {
	flag := "0"
	if restore {
		flag = "1"
	}
	entries, err := releaseScript.Run(ctx, l.rdb, []string{reservationKey(orderID)}, flag, stockKeyPrefix).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("release %s: %w", orderID, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return pairsToQuantities(entries)
}

func (l *RedisLedger) Stock(ctx context.Context, productID string) (int, error) {
	stock, err := l.rdb.Get(ctx, stockKey(productID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return stock, err
}

func (l *RedisLedger) Reservation(ctx context.Context, orderID string) (map[string]int, error) {
	fields, err := l.rdb.HGetAll(ctx, reservationKey(orderID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(fields))
	for pid, raw := range fields {
		qty, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("reservation %s/%s: %w", orderID, pid, err)
		}
		out[pid] = qty
	}
	return out, nil
}

func pairsToQuantities(entries []string) (map[string]int, error) {
	out := make(map[string]int, len(entries)/2)
	for i := 0; i+1 < len(entries); i += 2 {
		qty, err := strconv.Atoi(entries[i+1])
		if err != nil {
			return nil, fmt.Errorf("reserved quantity for %s: %w", entries[i], err)
		}
		out[entries[i]] = qty
	}
	return out, nil
}
