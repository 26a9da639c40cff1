package domain

// KeyPrefix namespaces every Redis key written by persona.
const KeyPrefix = "persona:"
