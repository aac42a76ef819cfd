// Package http exposes the cabin service over JSON.
//
// Routes:
//   - POST /sessions signs in with {"email","password"} and returns a session
//     token, also set as the session_token cookie. DELETE /sessions/current
//     signs out; DELETE /sessions/{token} lets an administrator revoke any
//     session.
//   - GET, POST /users and DELETE /users/{id}. Any member may list; creating
//     and deleting users is reserved to administrators.
//   - GET, POST /reservations and GET, PUT, DELETE /reservations/{id}. Listing
//     accepts optional from and to query parameters as YYYY-MM-DD.
//   - GET, POST /swaps, GET /swaps/{id}, and POST /swaps/{id}/accept,
//     /swaps/{id}/decline and /swaps/{id}/cancel.
//   - GET, POST /swap-response takes the token and action from an email link.
//     It needs no session and is rate limited per client address.
//   - GET /weather returns the cached forecast; GET /calendar.ics exports the
//     reservations as all-day events; GET /healthz checks the database.
//
// Session tokens are read from the Authorization bearer header or the
// session_token cookie. Request and response DTOs live next to their
// handlers.
package http
