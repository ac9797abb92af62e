// Package rights generates and validates the Archivematica rights.csv that
// carries PREMIS rights metadata into a transfer.
//
// Every object file in a bag receives one row per granted right of each
// rights statement; statements without grants contribute a row with empty
// grant columns. Older Archivematica releases reject those empty-grant rows,
// which the skip flag on CreateCSV accounts for.
package rights
