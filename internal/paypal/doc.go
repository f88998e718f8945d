// Package paypal talks to the PayPal adaptive payments, accounts, and
// permissions endpoints used by contributions, premium enrollment, and
// refunds.
//
// Requests and responses use PayPal's name/value encoding. Gateway failures
// return *Error; network timeouts are tagged with services.ErrTimeout so
// callers can show "Could not validate PayPal id." instead of the raw cause.
package paypal
