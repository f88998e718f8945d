// Package services defines shared error markers and context helpers used by
// the HTTP handlers, developer hub workflows, and task handlers.
//
// Error markers classify failures twice: the API maps them to response codes
// through HTTPStatus and the worker decides between retry and permanent
// failure through Permanent. Context helpers stamp request, user, and task
// identifiers so logging.WithContext can tag lines consistently.
package services
