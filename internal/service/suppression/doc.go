// Package suppression implements the global suppression list and the
// pre-send SuppressionChecker.
//
// Every send path filters its audience through Service.Filter, which drops
// addresses with an active suppression row and users whose preferences opt
// them out of the campaign's category. Suppression writes are idempotent
// upserts on the lower-cased email.
package suppression
