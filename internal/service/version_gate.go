package service

// AcceptVersion is the version gate: a patch is accepted only when the client
// proves it saw the note's current version. Anything else is rejected whole;
// no partial merge is attempted on mismatch.
func AcceptVersion(clientVersion, noteVersion int64) bool {
	return clientVersion == noteVersion
}
