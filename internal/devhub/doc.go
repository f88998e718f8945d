// Package devhub implements the developer hub: the submission wizard,
// uploads and versions, review requests, contributions, premium settings,
// refunds and the author dashboard.
//
// Every operation takes the acting user (nil when anonymous) and checks
// author roles before touching the store. Input problems come back as
// FormErrors keyed by field; navigation guards come back as *Redirect so
// transports can send the caller to the right wizard step.
package devhub
