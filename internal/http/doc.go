// Package http exposes the attendance service over HTTP.
//
// The router registers the following endpoints:
//   - POST /generate-qr: starts a session at the admin position. Body:
//     {"lat","lon","accuracy"}. Response: 201 with {"session_id","qr","qr_url",
//     "generated_at","expires_at"} where qr is a PNG data URL.
//   - POST /mark-attendance: submits a student's attendance. Body:
//     {"name","roll","deviceId","sessionId","lat","lon","accuracy"}. Response:
//     {"success":true}. Rejections carry {"error_code","message","error"}.
//   - GET /session: reports the current session and its remaining window.
//   - GET /session/records: lists the records the durable store holds for
//     ?session_id=, defaulting to the current session. Only registered when a
//     readable record sink is configured.
//   - GET /download: returns the attendance log as an attachment named
//     attendance.csv.
//   - POST /download/email: e-mails the same attachment. Only registered when a
//     report mailer is configured.
//   - GET /qr.png: renders the current session's code as an image.
//   - GET / and GET /student.html: the embedded admin and student pages.
//
// Request/response DTOs live alongside the handler so tests and documentation
// share the same ground truth.
package http
