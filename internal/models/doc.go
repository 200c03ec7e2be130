// package models defines the data model for the experiment sync pipeline.
//
// A [TransferRecord] is the in-flight representation of one source run on its
// way into the destination store. [Value] is the typed form of a source
// parameter recovered from its string encoding.
package models
