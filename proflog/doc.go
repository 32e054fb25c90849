// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package proflog writes loopprof event lifecycles to a logiface logger.
//
// Started events are logged at debug, completed events at info, or warning
// if they ran for at least the slow threshold, and failed events at error.
// Warning and error lines are rate limited per event kind, using
// github.com/joeycumines/go-catrate, so a misbehaving timer cannot flood the
// log. Suppressed lines are counted, see [Reporter.Suppressed].
package proflog
