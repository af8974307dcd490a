package adapter

import "github.com/ripplekit/storebridge/internal/core"

// maxConflictAttempts bounds how often a local mutation is retried before
// the remote side wins outright.
const maxConflictAttempts = 3

// GetConflictHandler returns the adapter's conflict-resolution policy:
//
//  1. A mutation retried more than maxConflictAttempts times loses;
//     accept the remote record.
//  2. A conflicting delete always loses; accept the remote record.
//  3. Otherwise the higher version wins. On a version tie the remote
//     record wins only when its change timestamp is strictly newer.
//  4. Everything still tied falls back to the configured strategy, or
//     retries the local mutation when none is configured.
func (a *Adapter) GetConflictHandler() core.ConflictHandler {
	fallback := a.opts.ConflictStrategy
	if fallback == "" {
		fallback = core.RetryLocal
	}
	return func(data core.ConflictData) core.ConflictResolution {
		if data.Attempts > maxConflictAttempts {
			return core.AcceptRemote
		}
		if data.Operation == core.ConflictOpDelete {
			return core.AcceptRemote
		}

		localVersion := recordVersion(data.LocalRecord)
		remoteVersion := recordVersion(data.RemoteRecord)
		switch {
		case remoteVersion > localVersion:
			return core.AcceptRemote
		case localVersion > remoteVersion:
			return core.RetryLocal
		}

		if recordLastChanged(data.RemoteRecord) > recordLastChanged(data.LocalRecord) {
			return core.AcceptRemote
		}
		return fallback
	}
}

// recordVersion reads a record's sync version, accepting both the native
// column name and the framework field name.
func recordVersion(rec core.Record) float64 {
	return numericField(rec, core.ColumnVersion, "_version")
}

// recordLastChanged reads a record's last-changed timestamp in epoch
// milliseconds.
func recordLastChanged(rec core.Record) float64 {
	return numericField(rec, core.ColumnLastChanged, "_lastChangedAt")
}

func numericField(rec core.Record, keys ...string) float64 {
	for _, key := range keys {
		v, ok := rec[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n
		case float32:
			return float64(n)
		case int:
			return float64(n)
		case int32:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return 0
}
