package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/nhle/jira-import/internal/model"
	"github.com/nhle/jira-import/internal/theme"
)

// newFolderChoice is the folder option that creates a folder.
const newFolderChoice = "\x00new"

// SelectFolder lets the user pick the destination folder, or create one.
// Dismissing the dialog returns a nil folder.
func (d *Dialogs) SelectFolder(ctx context.Context, project model.Project) (*model.Folder, error) {
	folders, err := d.folders(project)
	if err != nil {
		return nil, err
	}

	choice := ""
	if len(folders) > 0 {
		choice = folders[0].Path
	}
	err = d.run(ctx, theme.Form(),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Destination Folder").
				Description(fmt.Sprintf("Test case folder in %s", project.Name)).
				Options(folderOptions(folders)...).
				Value(&choice),
		),
	)
	if err != nil {
		return nil, ignoreCanceled(err)
	}

	if choice != newFolderChoice {
		return &model.Folder{Path: choice}, nil
	}

	var rel string
	err = d.run(ctx, theme.Form(),
		huh.NewGroup(
			huh.NewInput().
				Title("New Folder").
				Description("Path relative to Test Cases").
				Validate(requireValue("folder")).
				Value(&rel),
		),
	)
	if err != nil {
		return nil, ignoreCanceled(err)
	}

	folder, err := d.createFolder(project, rel)
	if err != nil {
		return nil, err
	}
	d.log.Info("folder created", "folder", folder.String())
	return &folder, nil
}

// folderOptions lists folders by path, followed by the new folder entry.
func folderOptions(folders []model.Folder) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(folders)+1)
	for _, f := range folders {
		opts = append(opts, huh.NewOption(f.String(), f.Path))
	}
	return append(opts, huh.NewOption("New folder…", newFolderChoice))
}

func ignoreCanceled(err error) error {
	if errors.Is(err, model.ErrCanceled) {
		return nil
	}
	return err
}
