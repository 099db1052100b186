package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jcastroba/red-simpatizantes/internal/models"
	"github.com/jcastroba/red-simpatizantes/internal/tree"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// NetworkService assembles per-request views of a person's referral subtree.
// Nothing is cached: every call reflects current data.
type NetworkService struct {
	people      PersonStore
	labels      LevelLabelStore
	loader      *tree.Loader
	checker     *tree.Checker
	layout      tree.LayoutOptions
	concurrency int
	logger      *zap.Logger
}

// NetworkOptions tunes traversal limits, layout spacing and admin fan-out
type NetworkOptions struct {
	Limits      tree.Limits
	Layout      tree.LayoutOptions
	Concurrency int
}

// NewNetworkService creates a new network service
func NewNetworkService(people PersonStore, labels LevelLabelStore, opts NetworkOptions, logger *zap.Logger) *NetworkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Layout.Spacing == 0 || opts.Layout.LevelHeight == 0 {
		def := tree.DefaultLayoutOptions()
		if opts.Layout.Spacing == 0 {
			opts.Layout.Spacing = def.Spacing
		}
		if opts.Layout.LevelHeight == 0 {
			opts.Layout.LevelHeight = def.LevelHeight
		}
	}
	return &NetworkService{
		people:      people,
		labels:      labels,
		loader:      tree.NewLoader(people, opts.Limits, logger),
		checker:     tree.NewChecker(people, opts.Limits, logger),
		layout:      opts.Layout,
		concurrency: opts.Concurrency,
		logger:      logger,
	}
}

func (s *NetworkService) load(ctx context.Context, personID int64, order tree.Ordering) (*tree.Snapshot, error) {
	snap, err := s.loader.Load(ctx, []int64{personID}, order)
	if err != nil {
		return nil, fmt.Errorf("network of %d: %w", personID, err)
	}
	return snap, nil
}

// bfsOrder lists the snapshot ids level by level following the ordered child lists
func bfsOrder(rootID int64, children map[int64][]int64) []int64 {
	order := []int64{rootID}
	for i := 0; i < len(order); i++ {
		order = append(order, children[order[i]]...)
	}
	return order
}

// BuildNetworkView returns the positioned node/link view centred on personID.
// The person's sponsor, when present, is added one level above.
func (s *NetworkService) BuildNetworkView(ctx context.Context, personID int64) (*models.NetworkView, error) {
	me, err := s.people.FindByID(ctx, personID)
	if err != nil {
		return nil, storeErr(err, "person %d", personID)
	}

	snap, err := s.load(ctx, personID, tree.OrderIDAsc)
	if err != nil {
		return nil, err
	}
	sizes := tree.ComputeSizes(snap.Children)
	positions := tree.ComputeLayout(personID, snap.Children, s.layout)

	view := &models.NetworkView{
		Nodes:       make([]models.NodeView, 0, snap.Size()+1),
		Links:       make([]models.Link, 0, snap.Size()),
		NetworkSize: sizes[personID],
		LevelLabels: map[int]string{},
	}

	if me.ReferrerID != nil {
		sponsor, err := s.people.FindByID(ctx, *me.ReferrerID)
		switch {
		case err == nil:
			if _, inTree := snap.Nodes[sponsor.ID]; inTree {
				// referrer cycle; the sponsor already shows up below
				s.logger.Warn("sponsor is inside its own referral's subtree",
					zap.Int64("person_id", personID), zap.Int64("sponsor_id", sponsor.ID))
				break
			}
			tree.PlaceSponsor(positions, personID, sponsor.ID)
			// only the link to the person is part of this view
			view.Nodes = append(view.Nodes, s.nodeView(sponsor, models.NodeSponsor, 1, positions[sponsor.ID]))
			view.Links = append(view.Links, models.Link{Source: sponsor.ID, Target: personID})
		case isNotFound(err):
			s.logger.Warn("referrer missing", zap.Int64("person_id", personID), zap.Int64("referrer_id", *me.ReferrerID))
		default:
			return nil, fmt.Errorf("sponsor of %d: %w", personID, err)
		}
	}

	for _, id := range bfsOrder(personID, snap.Children) {
		node := snap.Nodes[id]
		kind := models.NodeReferral
		if id == personID {
			kind = models.NodeMe
		}
		kids := snap.Children[id]
		view.Nodes = append(view.Nodes, s.nodeView(&node.Person, kind, len(kids), positions[id]))
		for _, child := range kids {
			view.Links = append(view.Links, models.Link{Source: id, Target: child})
		}
	}

	labels, err := s.labels.ListLevelLabels(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("level labels of %d: %w", personID, err)
	}
	for _, l := range labels {
		view.LevelLabels[l.Level] = l.Name
	}

	return view, nil
}

func (s *NetworkService) nodeView(p *models.Person, kind models.NodeType, referrals int, pos tree.Position) models.NodeView {
	return models.NodeView{
		ID:             p.ID,
		Nombres:        p.Nombres,
		Apellidos:      p.Apellidos,
		Cedula:         p.Cedula,
		Telefono:       p.Phone,
		Email:          p.Email,
		ReferralsCount: referrals,
		Type:           kind,
		Level:          pos.Level,
		X:              pos.X,
		Y:              s.layout.Y(pos),
	}
}

// BuildDashboard returns the person's nested referral list, newest first at every level
func (s *NetworkService) BuildDashboard(ctx context.Context, personID int64) (*models.Dashboard, error) {
	snap, err := s.load(ctx, personID, tree.OrderCreatedDesc)
	if err != nil {
		return nil, err
	}
	sizes := tree.ComputeSizes(snap.Children)

	entries := make(map[int64]*models.ReferralNode, snap.Size())
	for id, n := range snap.Nodes {
		if id == personID {
			continue
		}
		entries[id] = &models.ReferralNode{
			ID:             id,
			Nombres:        n.Person.Nombres,
			Apellidos:      n.Person.Apellidos,
			Cedula:         n.Person.Cedula,
			Phone:          n.Person.Phone,
			Email:          n.Person.Email,
			CreatedAt:      n.Person.CreatedAt,
			ReferralsCount: len(snap.Children[id]),
			SubReferrals:   make([]*models.ReferralNode, 0, len(snap.Children[id])),
		}
	}

	top := make([]*models.ReferralNode, 0, len(snap.Children[personID]))
	for _, parent := range bfsOrder(personID, snap.Children) {
		for _, child := range snap.Children[parent] {
			if parent == personID {
				top = append(top, entries[child])
				continue
			}
			entries[parent].SubReferrals = append(entries[parent].SubReferrals, entries[child])
		}
	}

	me := snap.Nodes[personID].Person
	return &models.Dashboard{
		Nombres:        me.Nombres,
		Apellidos:      me.Apellidos,
		ReferralCode:   me.ReferralCode,
		ReferralsCount: len(snap.Children[personID]),
		NetworkSize:    sizes[personID],
		Referrals:      top,
	}, nil
}

// Summary returns the direct referral count and the total network size of a person
func (s *NetworkService) Summary(ctx context.Context, personID int64) (direct int, size int, err error) {
	snap, err := s.load(ctx, personID, tree.OrderIDAsc)
	if err != nil {
		return 0, 0, err
	}
	return tree.DirectChildrenCount(snap.Children, personID), tree.ComputeSizes(snap.Children)[personID], nil
}

// NetworkSize returns the number of descendants of personID
func (s *NetworkService) NetworkSize(ctx context.Context, personID int64) (int, error) {
	_, size, err := s.Summary(ctx, personID)
	return size, err
}

// SubtreeIDs returns personID and every descendant id
func (s *NetworkService) SubtreeIDs(ctx context.Context, personID int64) ([]int64, error) {
	snap, err := s.load(ctx, personID, tree.OrderIDAsc)
	if err != nil {
		return nil, err
	}
	return bfsOrder(personID, snap.Children), nil
}

// Inspect reports traversal statistics for a subtree
func (s *NetworkService) Inspect(ctx context.Context, personID int64) (*models.SubtreeStats, error) {
	snap, err := s.load(ctx, personID, tree.OrderIDAsc)
	if err != nil {
		return nil, err
	}
	for _, a := range snap.Anomalies {
		s.logger.Info("anomaly", zap.String("kind", string(a.Kind)),
			zap.Int64("parent_id", a.ParentID), zap.Int64("child_id", a.ChildID))
	}
	return &models.SubtreeStats{
		RootID:    personID,
		Size:      tree.ComputeSizes(snap.Children)[personID],
		Depth:     snap.Depth,
		Rounds:    snap.Rounds,
		Anomalies: len(snap.Anomalies),
	}, nil
}

// IsDescendant reports whether candidateID is ancestorID or lies below it
func (s *NetworkService) IsDescendant(ctx context.Context, ancestorID, candidateID int64) (*models.DescendantCheck, error) {
	ok, err := s.checker.IsDescendant(ctx, ancestorID, candidateID)
	if err != nil {
		return nil, fmt.Errorf("descendant check %d/%d: %w", ancestorID, candidateID, err)
	}
	return &models.DescendantCheck{AncestorID: ancestorID, CandidateID: candidateID, IsDescendant: ok}, nil
}

// NetworkRoots lists every founder with its total network size.
// Sizes are computed concurrently, bounded by the configured fan-out.
// A root whose network exceeds the traversal limits is flagged instead of failing the list.
func (s *NetworkService) NetworkRoots(ctx context.Context) ([]models.NetworkRoot, error) {
	roots, err := s.people.ListRoots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list networks: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range roots {
		g.Go(func() error {
			size, err := s.NetworkSize(gctx, roots[i].ID)
			switch {
			case errors.Is(err, tree.ErrSizeLimitExceeded):
				// one oversized network must not hide the others
				s.logger.Warn("network too large to size", zap.Int64("root_id", roots[i].ID), zap.Error(err))
				roots[i].SizeLimitExceeded = true
				return nil
			case err != nil:
				return err
			}
			roots[i].TotalNetworkSize = size
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return roots, nil
}

// ListLevelLabels returns the owner's label overrides
func (s *NetworkService) ListLevelLabels(ctx context.Context, ownerID int64) ([]models.LevelLabel, error) {
	labels, err := s.labels.ListLevelLabels(ctx, ownerID)
	if err != nil {
		return nil, storeErr(err, "level labels of %d", ownerID)
	}
	return labels, nil
}

// SetLevelLabel names one level of the owner's network
func (s *NetworkService) SetLevelLabel(ctx context.Context, ownerID int64, level int, name string) (*models.LevelLabel, error) {
	name = strings.TrimSpace(name)
	if level < 0 {
		return nil, fmt.Errorf("level %d: %w", level, ErrInvalid)
	}
	if name == "" {
		return nil, fmt.Errorf("empty level name: %w", ErrInvalid)
	}
	label, err := s.labels.UpsertLevelLabel(ctx, ownerID, level, name)
	if err != nil {
		return nil, storeErr(err, "level label %d of %d", level, ownerID)
	}
	return label, nil
}

// DeleteLevelLabel restores the default name of a level
func (s *NetworkService) DeleteLevelLabel(ctx context.Context, ownerID int64, level int) error {
	return storeErr(s.labels.DeleteLevelLabel(ctx, ownerID, level), "level label %d of %d", level, ownerID)
}
