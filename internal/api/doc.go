// Package api hosts the HTTP listeners. Notable routes:
//   - POST /check-sales?url= on the public listener runs one interactive
//     check and answers with the screenshot. Every other method or path is
//     rejected with 405.
//   - GET /healthz, /readyz and /metrics on the admin listener.
package api
