// Package core runs uploaded CSV files through the refiner pipeline.
//
// Each upload becomes a [FileSession] held in the [Queue]. The [Service]
// moves sessions through a fixed set of statuses:
//
//	PROCESSING ──► READY_VALID ─────────────┐
//	    │                                   ├──► COMPLETED
//	    ├──► PENDING_CORRECTION ──► READY_AI / READY_CACHE
//	    │          │    ▲                   │
//	    │          │    └── critical insert ┘
//	    │          └──► MANUAL_FAILURE
//	    └──► READ_FAILED ──► MANUAL_FAILURE
//
// Any non-terminal file can be CANCELLED by removing it. Transitions not in
// the table fail with [ErrInvalidTransition].
//
// # Correction
//
// [Service.Correct] asks the generator for a script (from the cache when the
// file's structural fingerprint has been seen before), runs it and validates
// the result again. A file gets a bounded number of failed attempts before
// it is handed over to manual handling with [ErrAttemptsExhausted].
//
// # Audit
//
// Every status change is written to the [AuditLog], one row per file,
// inserted on the first write and updated afterwards. Audit failures are
// logged and never stop the pipeline.
//
// # Concurrency
//
// Operations on one session are serialized by the session's mutex. The
// [IngestLimiter] bounds how many files are read, corrected or inserted at
// the same time across the whole service.
package core
