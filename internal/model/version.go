package model

// Version is the tracediff release.
const Version = "0.4.0"
