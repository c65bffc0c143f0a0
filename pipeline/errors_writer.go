package pipeline

import "errors"

var (
	errGapAtStreamEnd           = errors.New("ordered writer: gap remains after final segment observed")
	errNoFinalSegment           = errors.New("ordered writer: input closed before a FINAL_SEGMENT was seen")
	errStreamEndedWithoutFinal  = errors.New("ordered reader: stream ended before a FINAL_SEGMENT was read")
)
