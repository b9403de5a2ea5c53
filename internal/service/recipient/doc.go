// Package recipient resolves a RecipientFilterSpec into a concrete,
// de-duplicated audience.
//
// Sources are combined in a fixed order: users matching attribute
// predicates (U), event registrants (E, intersected with U when U is
// present), external contact lists, custom and caller-supplied addresses,
// and finally exclude lists which subtract from everything. The result is
// sorted by email so repeated resolves of the same data are identical.
package recipient
