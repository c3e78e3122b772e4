package constants

import "os"

// ActorDebugging enables the debug syscall module for sandboxed actors.
var ActorDebugging = os.Getenv("GO_FVM_ACTOR_DEBUGGING") == "1"

// InsecurePoStValidation short-circuits proof verification, only for test networks.
var InsecurePoStValidation = os.Getenv("INSECURE_POST_VALIDATION") == "1"
