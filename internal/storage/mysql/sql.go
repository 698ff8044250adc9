package mysql

const insertPlanSQL = `
INSERT INTO plans
  (id, participants, midpoint_lat, midpoint_lng, selected_venues, filters, preferences, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectPlanSQL = `
SELECT id, participants, midpoint_lat, midpoint_lng, selected_venues, filters, preferences, created_at, updated_at
FROM plans
WHERE id = ?
`

// participants and midpoint are immutable once a plan exists
const updatePlanSQL = `
UPDATE plans
SET selected_venues = ?,
    filters         = ?,
    preferences     = ?,
    updated_at      = ?
WHERE id = ?
`

// A refresh overwrites every provider field; a NULL analysis keeps the cached one.
const upsertVenueSQL = `
INSERT INTO venues
  (id, name, category, rating, review_count, price_level, address, lat, lng,
   hours, photos, website, phone, features, analysis, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP(3))
ON DUPLICATE KEY UPDATE
  name         = VALUES(name),
  category     = VALUES(category),
  rating       = VALUES(rating),
  review_count = VALUES(review_count),
  price_level  = VALUES(price_level),
  address      = VALUES(address),
  lat          = VALUES(lat),
  lng          = VALUES(lng),
  hours        = VALUES(hours),
  photos       = VALUES(photos),
  website      = VALUES(website),
  phone        = VALUES(phone),
  features     = VALUES(features),
  analysis     = COALESCE(VALUES(analysis), venues.analysis),
  updated_at   = CURRENT_TIMESTAMP(3)
`

const venueColumns = `
  id, name, category, rating, review_count, price_level, address, lat, lng,
  hours, photos, website, phone, features, analysis, updated_at
`

const selectVenuesAfterSQL = `SELECT` + venueColumns + `FROM venues WHERE id > ? ORDER BY id LIMIT ?`
