package mysql

// Schema creates the listing tables. CHECK constraints need MySQL 8.0.16+.
// MySQL rejects CHECK constraints on columns used by cascading foreign
// keys, so the single-subject rule for reviews is enforced by the service.
const Schema = `
CREATE TABLE IF NOT EXISTS businesses (
    id             VARCHAR(64) PRIMARY KEY,
    name           VARCHAR(255) NOT NULL,
    description    TEXT NOT NULL,
    owner_id       VARCHAR(64),
    status         ENUM('pending', 'approved', 'rejected', 'inactive') NOT NULL DEFAULT 'pending',
    average_rating DECIMAL(3,2) CHECK (average_rating BETWEEN 0 AND 5),
    review_count   INT NOT NULL DEFAULT 0 CHECK (review_count >= 0),
    created_at     DATETIME(6) NOT NULL,
    updated_at     DATETIME(6) NOT NULL
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS tourist_spots (
    id             VARCHAR(64) PRIMARY KEY,
    name           VARCHAR(255) NOT NULL,
    description    TEXT NOT NULL,
    owner_id       VARCHAR(64),
    status         ENUM('active', 'inactive', 'under_maintenance', 'coming_soon') NOT NULL DEFAULT 'coming_soon',
    average_rating DECIMAL(3,2) CHECK (average_rating BETWEEN 0 AND 5),
    review_count   INT NOT NULL DEFAULT 0 CHECK (review_count >= 0),
    created_at     DATETIME(6) NOT NULL,
    updated_at     DATETIME(6) NOT NULL
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS events (
    id             VARCHAR(64) PRIMARY KEY,
    name           VARCHAR(255) NOT NULL,
    description    TEXT NOT NULL,
    owner_id       VARCHAR(64),
    status         ENUM('upcoming', 'ongoing', 'completed', 'cancelled') NOT NULL DEFAULT 'upcoming',
    starts_at      DATETIME(6),
    ends_at        DATETIME(6),
    average_rating DECIMAL(3,2) CHECK (average_rating BETWEEN 0 AND 5),
    review_count   INT NOT NULL DEFAULT 0 CHECK (review_count >= 0),
    created_at     DATETIME(6) NOT NULL,
    updated_at     DATETIME(6) NOT NULL
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS reviews (
    id              VARCHAR(64) PRIMARY KEY,
    reviewer_id     VARCHAR(64) NOT NULL,
    review_type     ENUM('business', 'tourist_spot', 'event') NOT NULL,
    business_id     VARCHAR(64),
    tourist_spot_id VARCHAR(64),
    event_id        VARCHAR(64),
    rating          TINYINT NOT NULL CHECK (rating BETWEEN 1 AND 5),
    title           VARCHAR(255) NOT NULL DEFAULT '',
    comment         TEXT NOT NULL,
    is_approved     BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      DATETIME(6) NOT NULL,
    updated_at      DATETIME(6) NOT NULL,
    CONSTRAINT reviews_business_fk FOREIGN KEY (business_id) REFERENCES businesses(id) ON DELETE CASCADE,
    CONSTRAINT reviews_tourist_spot_fk FOREIGN KEY (tourist_spot_id) REFERENCES tourist_spots(id) ON DELETE CASCADE,
    CONSTRAINT reviews_event_fk FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE,
    INDEX reviews_business_idx (business_id, is_approved),
    INDEX reviews_tourist_spot_idx (tourist_spot_id, is_approved),
    INDEX reviews_event_idx (event_id, is_approved)
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS booking_sequence (
    id BIGINT AUTO_INCREMENT PRIMARY KEY
) ENGINE=InnoDB;

CREATE TABLE IF NOT EXISTS bookings (
    id              VARCHAR(64) PRIMARY KEY,
    booking_number  VARCHAR(32) NOT NULL UNIQUE,
    user_id         VARCHAR(64) NOT NULL,
    business_id     VARCHAR(64),
    tourist_spot_id VARCHAR(64),
    event_id        VARCHAR(64),
    status          ENUM('pending', 'confirmed', 'cancelled', 'completed') NOT NULL DEFAULT 'pending',
    guests          INT NOT NULL CHECK (guests > 0),
    visit_date      DATETIME(6) NOT NULL,
    notes           TEXT NOT NULL,
    created_at      DATETIME(6) NOT NULL,
    updated_at      DATETIME(6) NOT NULL,
    CONSTRAINT bookings_business_fk FOREIGN KEY (business_id) REFERENCES businesses(id) ON DELETE CASCADE,
    CONSTRAINT bookings_tourist_spot_fk FOREIGN KEY (tourist_spot_id) REFERENCES tourist_spots(id) ON DELETE CASCADE,
    CONSTRAINT bookings_event_fk FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
) ENGINE=InnoDB;
`
