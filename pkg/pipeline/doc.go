// Package pipeline holds what the evolution stages share: the control
// payload carried between stages, the collaborator bundle (Deps) and the
// helpers that pull structured answers out of model output.
//
// The stages live in subpackages:
//
//	serving     resolve CURRENT, answer, append to the transcript
//	critic      judge a transcript against the genome's rules
//	mutator     propose three challenger brains
//	judge       simulate challengers, pick a winner, check compliance
//	supervisor  safety audit and promotion
//	escalation  retry-or-ticket transition shared by judge and supervisor
//	feedback    like/dislike counters and user tickets
//	runner      in-process orchestration of one evolution cycle
//
// Stages are stateless. Everything a retry needs travels in Payload.
package pipeline
