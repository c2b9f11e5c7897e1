// Package ir provides the shared wire types of the remote storage protocol.
//
// This package contains identifiers, descriptors, response codes and the
// constrained record value model. All other internal packages import ir;
// ir imports nothing internal.
//
// Key design constraints:
//   - SharedStateID is comparable and compares BOTH the numeric id and the
//     server token, so ids from different server incarnations never collide
//   - StatementDescriptor is comparable and used directly as a map key
//   - Record values carry NO floats - use int64 for numbers
//   - All JSON tags use snake_case
package ir
