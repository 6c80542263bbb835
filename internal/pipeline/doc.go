// Package pipeline contains the stage processors and the stage-agnostic
// worker loop that drives jobs from queued to completed. Each worker blocks
// on its stage's queue, marks the job in progress, runs the stage's external
// collaborators, persists produced artifacts, and hands the job to the next
// stage or finalizes it. A collaborator failure fails the job immediately;
// there is no retry.
package pipeline
