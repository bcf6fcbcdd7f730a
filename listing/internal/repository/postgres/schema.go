package postgres

// Schema creates the listing tables. Statuses and the single-subject
// rule are duplicated as CHECK constraints so that writes bypassing
// the service are held to the same rules.
const Schema = `
CREATE TABLE IF NOT EXISTS businesses (
    id             text PRIMARY KEY,
    name           text NOT NULL,
    description    text NOT NULL DEFAULT '',
    owner_id       text,
    status         text NOT NULL DEFAULT 'pending'
                   CHECK (status IN ('pending', 'approved', 'rejected', 'inactive')),
    average_rating numeric(3,2) CHECK (average_rating BETWEEN 0 AND 5),
    review_count   integer NOT NULL DEFAULT 0 CHECK (review_count >= 0),
    created_at     timestamptz NOT NULL DEFAULT now(),
    updated_at     timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tourist_spots (
    id             text PRIMARY KEY,
    name           text NOT NULL,
    description    text NOT NULL DEFAULT '',
    owner_id       text,
    status         text NOT NULL DEFAULT 'coming_soon'
                   CHECK (status IN ('active', 'inactive', 'under_maintenance', 'coming_soon')),
    average_rating numeric(3,2) CHECK (average_rating BETWEEN 0 AND 5),
    review_count   integer NOT NULL DEFAULT 0 CHECK (review_count >= 0),
    created_at     timestamptz NOT NULL DEFAULT now(),
    updated_at     timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
    id             text PRIMARY KEY,
    name           text NOT NULL,
    description    text NOT NULL DEFAULT '',
    owner_id       text,
    status         text NOT NULL DEFAULT 'upcoming'
                   CHECK (status IN ('upcoming', 'ongoing', 'completed', 'cancelled')),
    starts_at      timestamptz,
    ends_at        timestamptz,
    average_rating numeric(3,2) CHECK (average_rating BETWEEN 0 AND 5),
    review_count   integer NOT NULL DEFAULT 0 CHECK (review_count >= 0),
    created_at     timestamptz NOT NULL DEFAULT now(),
    updated_at     timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reviews (
    id              text PRIMARY KEY,
    reviewer_id     text NOT NULL,
    review_type     text NOT NULL CHECK (review_type IN ('business', 'tourist_spot', 'event')),
    business_id     text REFERENCES businesses(id) ON DELETE CASCADE,
    tourist_spot_id text REFERENCES tourist_spots(id) ON DELETE CASCADE,
    event_id        text REFERENCES events(id) ON DELETE CASCADE,
    rating          smallint NOT NULL CHECK (rating BETWEEN 1 AND 5),
    title           text NOT NULL DEFAULT '',
    comment         text NOT NULL DEFAULT '',
    is_approved     boolean NOT NULL DEFAULT false,
    created_at      timestamptz NOT NULL DEFAULT now(),
    updated_at      timestamptz NOT NULL DEFAULT now(),
    CONSTRAINT reviews_single_subject
        CHECK (num_nonnulls(business_id, tourist_spot_id, event_id) = 1),
    CONSTRAINT reviews_type_matches_subject CHECK (
        (review_type = 'business' AND business_id IS NOT NULL) OR
        (review_type = 'tourist_spot' AND tourist_spot_id IS NOT NULL) OR
        (review_type = 'event' AND event_id IS NOT NULL)
    )
);

CREATE INDEX IF NOT EXISTS reviews_business_approved_idx ON reviews (business_id) WHERE is_approved;
CREATE INDEX IF NOT EXISTS reviews_tourist_spot_approved_idx ON reviews (tourist_spot_id) WHERE is_approved;
CREATE INDEX IF NOT EXISTS reviews_event_approved_idx ON reviews (event_id) WHERE is_approved;

CREATE SEQUENCE IF NOT EXISTS booking_number_seq;

CREATE TABLE IF NOT EXISTS bookings (
    id              text PRIMARY KEY,
    booking_number  text NOT NULL UNIQUE,
    user_id         text NOT NULL,
    business_id     text REFERENCES businesses(id) ON DELETE CASCADE,
    tourist_spot_id text REFERENCES tourist_spots(id) ON DELETE CASCADE,
    event_id        text REFERENCES events(id) ON DELETE CASCADE,
    status          text NOT NULL DEFAULT 'pending'
                    CHECK (status IN ('pending', 'confirmed', 'cancelled', 'completed')),
    guests          integer NOT NULL CHECK (guests > 0),
    visit_date      timestamptz NOT NULL,
    notes           text NOT NULL DEFAULT '',
    created_at      timestamptz NOT NULL DEFAULT now(),
    updated_at      timestamptz NOT NULL DEFAULT now(),
    CONSTRAINT bookings_single_subject
        CHECK (num_nonnulls(business_id, tourist_spot_id, event_id) = 1)
);
`
