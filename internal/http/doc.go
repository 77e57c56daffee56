// Package http exposes the booking service over JSON.
//
// Every route except GET /healthz requires an `Authorization: Bearer <token>`
// header carrying an HS256 identity token (see IdentityVerifier). Endpoints:
//   - GET /rooms?at=: rooms sorted by name with their occupancy (vacant,
//     occupied, endingSoon) at the given RFC 3339 instant, defaulting to now.
//   - GET /rooms/{id}/status?at=: a single room with its occupancy.
//   - POST /bookings: requests a booking. Body:
//     {"resource_id","start","end","reason"}. Responds 201 with the PENDING booking.
//   - GET /bookings?upcoming=: the caller's own bookings.
//   - GET /bookings/{id}: a booking visible to its requester or an administrator.
//   - GET /bookings/availability?resourceId=&start=&end=: {"available": bool}.
//   - GET /admin/bookings?status=&resourceId=: administrator listing.
//   - POST /admin/bookings/{id}/approve: approves and auto-rejects overlapping
//     pending bookings. Responds {"booking", "auto_rejected"}.
//   - POST /admin/bookings/{id}/reject: rejects a pending booking.
//
// Failures are reported as {"error_code","message","errors"}; a booking that
// collides with approved bookings adds "conflicting_booking_ids". A decision
// that could not be committed after retries answers 503 with Retry-After.
package http
