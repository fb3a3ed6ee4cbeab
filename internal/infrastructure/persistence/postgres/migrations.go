package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE ACTIVITY EVENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create activity events log
-- Version: 001

-- Append-only event log. The UNIQUE constraint on event_id is what makes
-- ingestion idempotent: concurrent inserts of the same event race on the
-- index and exactly one wins.
CREATE TABLE IF NOT EXISTS activity_events (
    id BIGSERIAL PRIMARY KEY,
    event_id VARCHAR(128) NOT NULL UNIQUE,
    user_id VARCHAR(128) NOT NULL,
    course_id BIGINT NOT NULL,
    unit_id VARCHAR(128) NOT NULL,
    action VARCHAR(16) NOT NULL,
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL,
    received_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_action CHECK (action IN ('VIEW', 'START', 'COMPLETE', 'SUBMIT')),
    CONSTRAINT valid_course CHECK (course_id > 0)
);

-- Replay order within one (user, course) stream
CREATE INDEX IF NOT EXISTS idx_activity_events_stream
    ON activity_events(user_id, course_id, occurred_at, event_id);

-- Course-level counts for snapshot rebuilds
CREATE INDEX IF NOT EXISTS idx_activity_events_course ON activity_events(course_id);
`

const migration001Down = `
DROP TABLE IF EXISTS activity_events;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE PROGRESS RECORDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create progress records view
-- Version: 002

-- Materialized per-(user, course) completion state. Derived from
-- activity_events; safe to truncate and rebuild.
CREATE TABLE IF NOT EXISTS progress_records (
    user_id VARCHAR(128) NOT NULL,
    course_id BIGINT NOT NULL,
    completed_units JSONB NOT NULL DEFAULT '[]'::jsonb,
    total_units INTEGER NOT NULL DEFAULT 0,
    applied_events BIGINT NOT NULL DEFAULT 0,
    last_activity_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, course_id),
    CONSTRAINT valid_total_units CHECK (total_units >= 0)
);

CREATE INDEX IF NOT EXISTS idx_progress_records_course ON progress_records(course_id);
`

const migration002Down = `
DROP TABLE IF EXISTS progress_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE COURSE SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create course analytics snapshots
-- Version: 003

-- Rolling per-course aggregate. progress_sum holds the sum of learner
-- ratios so incremental updates stay O(1); the mean is computed on read.
CREATE TABLE IF NOT EXISTS course_snapshots (
    course_id BIGINT PRIMARY KEY,
    total_users BIGINT NOT NULL DEFAULT 0,
    total_activities BIGINT NOT NULL DEFAULT 0,
    progress_sum DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_event_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_counts CHECK (total_users >= 0 AND total_activities >= 0)
);
`

const migration003Down = `
DROP TABLE IF EXISTS course_snapshots;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE COURSES
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create course catalog tables
-- Version: 004

-- Local catalog for deployments that own course structure instead of
-- calling an external catalog service.
CREATE TABLE IF NOT EXISTS courses (
    id BIGINT PRIMARY KEY,
    title VARCHAR(256) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_course_id CHECK (id > 0)
);

CREATE TABLE IF NOT EXISTS course_units (
    course_id BIGINT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    unit_id VARCHAR(128) NOT NULL,
    title VARCHAR(256) NOT NULL DEFAULT '',
    position INTEGER NOT NULL DEFAULT 0,

    PRIMARY KEY (course_id, unit_id)
);

CREATE INDEX IF NOT EXISTS idx_course_units_course ON course_units(course_id, position);
`

const migration004Down = `
DROP TABLE IF EXISTS course_units;
DROP TABLE IF EXISTS courses;
`
