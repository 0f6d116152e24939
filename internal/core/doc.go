// Package core provides the business logic for tabular inventory imports.
//
// This package contains the domain logic independent of any transport or
// storage. It can be used by web handlers, CLI tools, or tests without
// modification; persistence is reached only through the [Store] and
// [SourceArchive] interfaces.
//
// # Pipeline
//
// An import moves through these stages:
//
//  1. [Parse] / [ParseBinary] turn uploaded bytes into a [TabularDataset].
//     The delimited scanner never fails; only a broken xlsx container
//     returns a [*ParseError].
//  2. [Validate] maps every row onto a [Schema]. Bad cells degrade to the
//     field default and a [Diagnostic] is recorded; rows are not rejected.
//  3. [Project] builds the reviewable [PreviewView] shown before commit.
//  4. On confirmation the [Importer] commits rows one at a time, checking
//     ownership per row and recording audit entries for each created record.
//
// [Service] ties the stages together and holds previews between
// [Service.ParsePreview] and [Service.ConfirmImport].
//
// # Schema Registry
//
// Schemas are registered at init time using [Register]:
//
//	core.Register(core.Schema{
//	    Key:       "assets",
//	    Label:     "Assets",
//	    NameField: "name",
//	    TagField:  "asset_tag",
//	    Fields: []core.FieldSpec{
//	        {Name: "name", Type: core.FieldString},
//	        {Name: "status", Type: core.FieldEnum, Default: "ready", EnumValues: statuses},
//	    },
//	})
//
// # Authorization
//
// A tenant owner is treated as admin regardless of the stored role. Bulk
// import requires the manager role; each row is then checked with
// [EffectiveRole.CanMutate] against the row's custodian.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB006: Database errors (duplicates, connections, timeouts)
//   - PRS001-PRS003: Parse errors (unreadable, empty, too large)
//   - VAL001-VAL004: Validation errors (unknown fields, invalid values)
//   - AUTH001-AUTH002: Authorization errors
//   - IMP001-IMP004: Import lifecycle errors (busy, preview missing or expired)
//
// # Audit Trail
//
// Every persisted change writes one [AuditRecord] per changed field. The log
// is append-only and not deduplicated. A failed audit write is logged and
// does not undo the change it describes.
package core
