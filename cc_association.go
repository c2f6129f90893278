package zwave

import "time"

// AssociationSet adds members to a group on target (spec.md §4.7).
func (e *Engine) AssociationSet(target, group byte, members []byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	payload := append([]byte{group}, members...)
	m := newCommandClassMessage(target, PriorityCommand, ccAssociation, assocSet, payload)
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// AssociationRemove removes members from a group on target; an empty
// members list removes the entire group (spec.md §4.7).
func (e *Engine) AssociationRemove(target, group byte, members []byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	payload := append([]byte{group}, members...)
	m := newCommandClassMessage(target, PriorityCommand, ccAssociation, assocRemove, payload)
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// AssociationGet lists the members of a group on target.
func (e *Engine) AssociationGet(target, group byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccAssociation, assocGet, []byte{group})
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccAssociation, assocReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// AssociationGroupingsGet queries how many groups target supports.
func (e *Engine) AssociationGroupingsGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccAssociation, assocGroupingsGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccAssociation, assocGroupingsReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// MultiChannelAssociationSet is the association set variant that can target
// a specific end point on a multi-channel member, identified by a marker
// byte (0x00) followed by (nodeID, endPoint) pairs, per the Multi Channel
// Association command class.
func (e *Engine) MultiChannelAssociationSet(target, group byte, members []MultiChannelAssociationMember, awake bool, timeout time.Duration) (*InboundFrame, error) {
	payload := []byte{group}
	var plain []byte
	var marked []byte
	for _, mem := range members {
		if mem.EndPoint == 0 {
			plain = append(plain, mem.NodeID)
		} else {
			marked = append(marked, mem.NodeID, mem.EndPoint)
		}
	}
	payload = append(payload, plain...)
	if len(marked) > 0 {
		payload = append(payload, 0x00)
		payload = append(payload, marked...)
	}
	m := newCommandClassMessage(target, PriorityCommand, ccMultiAssociation, multiAssocSet, payload)
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// MultiChannelAssociationGet lists the members of a multi-channel group,
// including end points.
func (e *Engine) MultiChannelAssociationGet(target, group byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccMultiAssociation, multiAssocGet, []byte{group})
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccMultiAssociation, multiAssocReport
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// MultiChannelAssociationGroupingsGet queries how many multi-channel groups
// target supports.
func (e *Engine) MultiChannelAssociationGroupingsGet(target byte, awake bool, timeout time.Duration) (*InboundFrame, error) {
	m := newCommandClassMessage(target, PriorityQuery, ccMultiAssociation, multiAssocGroupingsGet, nil)
	m.ExpectsReply, m.ReplyClassID, m.ReplyCommandID = true, ccMultiAssociation, multiAssocGroupingsRept
	reply, _, err := e.sendCommandPolicy(m, awake, timeout)
	return reply, err
}

// MultiChannelAssociationMember is one entry of a multi-channel association
// group; EndPoint 0 denotes a plain (non-multi-channel) node member.
type MultiChannelAssociationMember struct {
	NodeID   byte
	EndPoint byte
}

// DecodeMultiChannelAssociationReport splits a MultiChannelAssociationReport
// payload into its group/maxGroupings/plain-members/marked-members parts.
func DecodeMultiChannelAssociationReport(payload []byte) (group, maxGroupings byte, members []MultiChannelAssociationMember, ok bool) {
	if len(payload) < 3 {
		return 0, 0, nil, false
	}
	group, maxGroupings = payload[0], payload[1]
	rest := payload[3:] // payload[2] is reports-to-follow
	marker := len(rest)
	for i, b := range rest {
		if b == 0x00 {
			marker = i
			break
		}
	}
	for _, n := range rest[:marker] {
		members = append(members, MultiChannelAssociationMember{NodeID: n})
	}
	for i := marker + 1; i+1 < len(rest); i += 2 {
		members = append(members, MultiChannelAssociationMember{NodeID: rest[i], EndPoint: rest[i+1]})
	}
	return group, maxGroupings, members, true
}
